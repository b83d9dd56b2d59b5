package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/bootforge/internal/item"
	"github.com/papapumpkin/bootforge/internal/match"
)

var findCmd = &cobra.Command{
	Use:   "find FAMILY KEY=PATTERN...",
	Short: "List items whose stored fields match every pattern",
	Long: "Patterns are case-insensitive globs; a leading ~ negates one. " +
		"List fields match when they contain every listed value, and interface fields match on any interface.",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := item.ParseFamily(args[0])
		if err != nil {
			return err
		}
		criteria, err := match.ParseCriteria(args[1:])
		if err != nil {
			return err
		}

		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.close()

		strict, _ := cmd.Flags().GetBool("strict")
		found, err := s.inv.Registry().FindStrict(f, criteria, strict)
		if err != nil {
			return err
		}
		s.printer.List(itemNames(found))
		return nil
	},
}

func init() {
	findCmd.Flags().Bool("strict", false, "fail on fields the family does not have")
	rootCmd.AddCommand(findCmd)
}
