package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/foldersync/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.JSON {
		return writeJSON(cmd.OutOrStdout(), cc.Cfg)
	}

	return config.RenderEffective(cc.Cfg, cmd.OutOrStdout())
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented config file with every default",
		Long: `Write a config file listing every setting, commented out at its default.
The file goes to --config when given, otherwise to the platform config
directory. An existing file is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := flagConfigPath
	if path == "" {
		path = config.ReadEnvOverrides().ConfigPath
	}

	if path == "" {
		path = config.DefaultConfigPath()
	}

	if path == "" {
		return fmt.Errorf("cannot determine config directory; pass --config")
	}

	if err := config.WriteTemplate(path); err != nil {
		return err
	}

	statusf(flagQuiet, "Wrote %s\n", path)

	return nil
}
