// Package cmdutil builds the archived cobra command tree: one persistent
// --config flag resolved through internal/config, shared across every
// subcommand so each one opens the same archive.Handle the same way.
package cmdutil

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bizzlechizzle/archive-core/internal/archive"
	"github.com/bizzlechizzle/archive-core/internal/config"
)

var configPath string

func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "archived",
		Short: "Local-first media archival core",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an explicit config file (overrides the usual search path)")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(fixityCmd())
	return root
}

// openHandle loads config and wires an archive.Handle the way every
// subcommand needs it; callers are responsible for calling Close.
func openHandle() (*archive.Handle, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logrus.NewEntry(logrus.StandardLogger())
	return archive.Open(cfg, log)
}
