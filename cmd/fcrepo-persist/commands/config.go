package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fcrepo/ocfl-persistence/pkg/config"
)

// configCmd is the config management subcommand.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage fcrepo-persist configuration files.

Use 'fcrepo-persist init' to create a new configuration file.

Subcommands:
  validate  Validate a configuration file
  show      Display the effective configuration`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file against the session, index,
and object store constraints, without starting the server.`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long:  `Load configuration (file, environment, and defaults layered) and print it as YAML.`,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(GetConfigFile()); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	fmt.Println("Configuration is valid.")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
