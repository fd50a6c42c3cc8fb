package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bizzlechizzle/archive-core/internal/fixity"
)

func fixityCmd() *cobra.Command {
	var locID string
	var all bool

	cmd := &cobra.Command{
		Use:   "fixity",
		Short: "Run one on-demand fixity verification pass and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHandle()
			if err != nil {
				return err
			}
			defer h.Close()

			scope := fixity.RandomSampleScope(50)
			switch {
			case all:
				scope = fixity.AllScope()
			case locID != "":
				scope = fixity.LocationScope(locID)
			}

			summary, err := h.Verify(cmd.Context(), scope, "cli")
			if err != nil {
				return err
			}
			fmt.Printf("checked=%d valid=%d corrupted=%d missing=%d errors=%d\n",
				summary.Checked, summary.Valid, summary.Corrupted, summary.Missing, summary.Errors)
			return nil
		},
	}
	cmd.Flags().StringVar(&locID, "location", "", "scope the pass to one location_id")
	cmd.Flags().BoolVar(&all, "all", false, "scope the pass to every catalogued hash")
	return cmd
}
