package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/retrotoast/internal/config"
	"github.com/jmylchreest/retrotoast/internal/theme"
)

var configOpts struct {
	yaml  bool
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration: the defaults overlaid with the
config file, as TOML (or YAML with --yaml).`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configThemesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List bundled and user themes",
	Args:  cobra.NoArgs,
	RunE:  runConfigThemes,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd, configThemesCmd)

	configShowCmd.Flags().BoolVar(&configOpts.yaml, "yaml", false,
		"Print as YAML instead of TOML")
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false,
		"Overwrite an existing config file")
}

func configPath() (string, error) {
	if globalOpts.configPath != "" {
		return globalOpts.configPath, nil
	}
	return config.Path()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if configOpts.yaml {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configOpts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigThemes(cmd *cobra.Command, args []string) error {
	themes, err := theme.ListAvailableThemes()
	if err != nil {
		return fmt.Errorf("failed to list themes: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, t := range themes {
		mark := " "
		if t.Name == cfg.Theme.Name {
			mark = "*"
		}

		var line string
		switch {
		case t.IsBundled:
			line = fmt.Sprintf("%s %s (bundled)", mark, t.Name)
		case t.Overrides:
			line = fmt.Sprintf("%s %s %s (overrides bundled)", mark, t.Name, t.Path)
		default:
			line = fmt.Sprintf("%s %s %s", mark, t.Name, t.Path)
		}
		if t.Path != "" {
			if info, err := os.Stat(t.Path); err == nil {
				line += ", modified " + humanize.Time(info.ModTime())
			}
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
