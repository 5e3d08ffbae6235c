package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	versions "github.com/frida-mgr/versions"
)

func newWhichCommand() *cobra.Command {
	var pythonVersion string

	cmd := &cobra.Command{
		Use:   "which <version|alias>",
		Short: "Show the tooling matched to a frida version or alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := mapPath()
			if err != nil {
				return err
			}
			m, err := versions.LoadOrInitMap(path)
			if err != nil {
				return err
			}
			ovrPath, err := overridesPath()
			if err != nil {
				return err
			}
			ovr, err := versions.LoadOverrides(ovrPath)
			if err != nil {
				return err
			}

			anchor, err := versions.ValidatePin(m, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "frida     %s\n", anchor)

			if v, ok := ovr.Tools(anchor); ok {
				fmt.Fprintf(out, "tools     %s (override)\n", v)
			} else if tr, ok := m.ResolveTools(args[0]); ok {
				fmt.Fprintf(out, "tools     %s (mapped from %s)\n", tr.Version, tr.MappedFrom)
			} else {
				fmt.Fprintf(out, "tools     unknown\n")
			}

			if v, ok := ovr.ObjectionFor(anchor, pythonVersion); ok {
				fmt.Fprintf(out, "objection %s (override)\n", v)
			} else if or, ok := m.ResolveObjection(args[0]); ok {
				fmt.Fprintf(out, "objection %s (mapped from %s)\n", or.Version, or.MappedFrom)
			} else {
				fmt.Fprintf(out, "objection unknown\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pythonVersion, "python", "", "Python interpreter version for objection overrides")
	return cmd
}
