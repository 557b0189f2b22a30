package cmd

import (
	"androidmirror/config"
	"androidmirror/logger"

	"github.com/spf13/cobra"
)

// CommandOptions holds the persistent flags shared by every command
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
}

// GetOptions extracts the persistent flags from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	return CommandOptions{ConfigFile: configFile, Verbose: verbose}
}

// NewRootCmd builds the androidmirror command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "androidmirror",
		Short: "Discover Android devices and mirror them with scrcpy",
		Long: `androidmirror enumerates the Android devices visible to adb, lists their
installed applications and launches scrcpy to mirror a device or a single app.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewDevicesCmd())
	root.AddCommand(NewAppsCmd())
	root.AddCommand(NewMirrorCmd())

	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the config named by --config and initializes logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := GetOptions(cmd)
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Debug:  opts.Verbose,
		Output: cfg.Log.Output,
		Pretty: cfg.Log.Pretty,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}
