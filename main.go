package main

import "github.com/papapumpkin/bootforge/cmd"

func main() {
	cmd.Execute()
}
