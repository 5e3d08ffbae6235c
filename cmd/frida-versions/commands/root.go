// Package commands implements the frida-versions CLI.
package commands

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/frida-mgr/versions/client"
	"github.com/frida-mgr/versions/fetch"
)

var (
	configDir string
	verbose   bool
)

// Root builds the command tree.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frida-versions",
		Short: "Resolve compatible frida toolchain versions",
		Long: `frida-versions discovers frida, frida-tools and objection releases and
computes which versions install cleanly together.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "state directory (default: user config dir)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newSyncCommand(),
		newListCommand(),
		newWhichCommand(),
		newCheckCommand(),
		newOverrideCommand(),
	)
	return cmd
}

// stateDir resolves the directory holding the version map and the
// override store.
func stateDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "frida-versions"), nil
}

func mapPath() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "version_map.toml"), nil
}

func overridesPath() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "overrides.toml"), nil
}

// newGetter returns the transport used against live sources, with a
// circuit breaker per upstream host.
func newGetter() client.Getter {
	return fetch.NewCircuitBreakerClient(client.Default())
}
