package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	versions "github.com/frida-mgr/versions"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known frida versions and their matched tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := mapPath()
			if err != nil {
				return err
			}
			m, err := versions.LoadOrInitMap(path)
			if err != nil {
				return err
			}

			aliasFor := make(map[string][]string)
			for alias, target := range m.Aliases {
				aliasFor[target] = append(aliasFor[target], alias)
			}

			out := cmd.OutOrStdout()
			for _, v := range m.Versions() {
				info := m.Mappings[v]
				line := fmt.Sprintf("%-10s tools %-8s", v, info.Tools)
				if info.Objection != "" {
					line += fmt.Sprintf(" objection %-8s", info.Objection)
				}
				line += fmt.Sprintf(" released %s", info.Released)
				if aliases := aliasFor[v]; len(aliases) > 0 {
					line += fmt.Sprintf("  (%v)", aliases)
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "\nlast updated %s from %s\n", m.Metadata.LastUpdated, m.Metadata.Source)
			return nil
		},
	}
}
