package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fcrepo/ocfl-persistence/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample fcrepo-persist configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/fcrepo-persist/config.yaml. Use --config to specify a
custom path.

Examples:
  # Initialize with default location
  fcrepo-persist init

  # Initialize with custom path
  fcrepo-persist init --config /etc/fcrepo-persist/config.yaml

  # Force overwrite existing config
  fcrepo-persist init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.GetDefaultConfig()
	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: fcrepo-persist serve")
	fmt.Printf("  3. Or specify custom config: fcrepo-persist serve --config %s\n", path)

	return nil
}
