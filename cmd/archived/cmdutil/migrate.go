package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"
)

// migrateCmd applies any pending catalog schema migrations and exits.
// catalog.Open runs golang-migrate on every open, so this is just that
// open/close pair surfaced as an explicit operator action (spec.md
// §4.5 "Additive, versioned migrations").
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending catalog schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHandle()
			if err != nil {
				return err
			}
			defer h.Close()
			fmt.Println("catalog schema is up to date")
			return nil
		},
	}
}
