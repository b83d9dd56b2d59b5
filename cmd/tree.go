package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/bootforge/internal/item"
	"github.com/papapumpkin/bootforge/internal/ui"
)

var treeCmd = &cobra.Command{
	Use:   "tree FAMILY NAME",
	Short: "Print an item's same-family subtree, or its lookup chain with --chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.close()

		it, err := s.lookup(args[0], args[1])
		if err != nil {
			return err
		}

		if chain, _ := cmd.Flags().GetBool("chain"); chain {
			layers, err := it.GrabTree()
			if err != nil {
				return err
			}
			lines := make([]ui.TreeLine, len(layers))
			for i, l := range layers {
				label := "settings"
				if li, ok := l.(*item.Item); ok {
					label = li.String()
				}
				lines[i] = ui.TreeLine{Depth: i, Label: label}
			}
			s.printer.Tree(lines)
			return nil
		}

		kids, err := it.TreeWalk()
		if err != nil {
			return err
		}
		lines := []ui.TreeLine{{Depth: 0, Label: it.String()}}
		for _, k := range kids {
			lines = append(lines, ui.TreeLine{Depth: k.Depth() - it.Depth(), Label: k.String()})
		}
		s.printer.Tree(lines)
		return nil
	},
}

var descendantsCmd = &cobra.Command{
	Use:   "descendants FAMILY NAME",
	Short: "List every item that inherits from or references an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.close()

		it, err := s.lookup(args[0], args[1])
		if err != nil {
			return err
		}
		kids, err := it.Descendants()
		if err != nil {
			return err
		}
		s.printer.List(itemNames(kids))
		return nil
	},
}

func init() {
	treeCmd.Flags().Bool("chain", false, "show the attribute lookup chain instead of the subtree")
	rootCmd.AddCommand(treeCmd, descendantsCmd)
}
