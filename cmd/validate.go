package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/bootforge/internal/inventory"
)

var errInvalidInventory = errors.New("inventory is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the inventory parses, orders, and loads cleanly",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.close()

		doc, err := inventory.ReadFile(s.cfg.Inventory)
		if err != nil {
			return err
		}
		err = inventory.Validate(doc)
		if err == nil {
			// A trial load catches what only the setters check.
			_, err = s.inv.Apply(doc)
		}
		s.printer.ValidateResult(s.cfg.Inventory, doc.Len(), err)
		if err != nil {
			return errInvalidInventory
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
