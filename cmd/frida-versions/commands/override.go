package commands

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	versions "github.com/frida-mgr/versions"
)

func newOverrideCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Record pin corrections that take precedence over the map",
	}
	cmd.AddCommand(newOverrideToolsCommand(), newOverrideObjectionCommand())
	return cmd
}

func newOverrideToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools <frida-version> <tools-version>",
		Short: "Override the tools version for a frida version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := overridesPath()
			if err != nil {
				return err
			}
			ovr, err := versions.LoadOverrides(path)
			if err != nil {
				return err
			}
			if !ovr.SetTools(args[0], args[1]) {
				log.Info("override already recorded", "frida", args[0], "tools", args[1])
				return nil
			}
			if err := ovr.Save(path); err != nil {
				return err
			}
			log.Info("override recorded", "frida", args[0], "tools", args[1])
			return nil
		},
	}
}

func newOverrideObjectionCommand() *cobra.Command {
	var pythonVersion string

	cmd := &cobra.Command{
		Use:   "objection <frida-version> <objection-version>",
		Short: "Override the objection version for a frida version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := overridesPath()
			if err != nil {
				return err
			}
			ovr, err := versions.LoadOverrides(path)
			if err != nil {
				return err
			}
			if !ovr.SetObjection(args[0], pythonVersion, args[1]) {
				log.Info("override already recorded", "frida", args[0], "objection", args[1])
				return nil
			}
			if err := ovr.Save(path); err != nil {
				return err
			}
			log.Info("override recorded", "frida", args[0], "objection", args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&pythonVersion, "python", "", "Python interpreter version the override applies to")
	return cmd
}
