package commands

import (
	"fmt"

	"github.com/git-pkgs/purl"
	"github.com/spf13/cobra"

	"github.com/frida-mgr/versions/internal/pypi"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <purl>",
		Short: "Check whether a pypi package version exists upstream",
		Long: `Check takes a package URL like pkg:pypi/frida-tools@13.3.0 and probes
the registry for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := purl.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing purl %q: %w", args[0], err)
			}
			if p.Type != "pypi" {
				return fmt.Errorf("unsupported purl type %q, only pypi is supported", p.Type)
			}
			if p.Version == "" {
				return fmt.Errorf("purl %q has no version", args[0])
			}

			registry := pypi.New("", newGetter())
			exists, err := registry.VersionExists(cmd.Context(), p.Name, p.Version)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "%s@%s exists: %s\n", p.Name, p.Version, registry.URLs().Release(p.Name, p.Version))
				return nil
			}
			fmt.Fprintf(out, "%s@%s not found: %s\n", p.Name, p.Version, registry.URLs().Project(p.Name))
			return nil
		},
	}
}
