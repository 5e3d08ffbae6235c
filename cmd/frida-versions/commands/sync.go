package commands

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	versions "github.com/frida-mgr/versions"
)

func newSyncCommand() *cobra.Command {
	var includePrerelease bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rebuild the version map from the live sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := mapPath()
			if err != nil {
				return err
			}

			cfg := versions.DefaultConfig()
			cfg.IncludePrerelease = includePrerelease

			m, err := versions.Refresh(cmd.Context(), newGetter(), cfg)
			if err != nil {
				return err
			}
			if err := m.Save(path); err != nil {
				return err
			}

			log.Info("version map updated",
				"mappings", len(m.Mappings),
				"path", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&includePrerelease, "pre", false, "include prerelease versions")
	return cmd
}
