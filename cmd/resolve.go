package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/bootforge/internal/item"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve FAMILY NAME [FIELD...]",
	Short: "Print the effective values of an item's inherited fields",
	Args:  cobra.MinimumNArgs(2),
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

		fields := args[2:]
		if len(fields) == 0 {
			for _, f := range it.Family().InheritableFields() {
				fields = append(fields, string(f))
			}
		}
		out := make(map[string]any, len(fields))
		for _, name := range fields {
			v, err := it.Resolve(item.Field(name))
			if err != nil {
				return err
			}
			out[name] = v
		}
		s.printer.Fields(it.String(), out)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show FAMILY NAME",
	Short: "Print every attribute of an item",
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
		raw, _ := cmd.Flags().GetBool("raw")
		m, err := it.ToMap(!raw)
		if err != nil {
			return err
		}
		s.printer.Fields(it.String(), m)
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("raw", false, "show stored values, inherit markers included")
	rootCmd.AddCommand(resolveCmd, showCmd)
}
