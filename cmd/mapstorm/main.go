// Mapstorm - scriptable tile map converter and toolkit.
// Reads and writes tile maps in built-in and extension-provided formats.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/mapstorm/internal/app"
	"github.com/dshills/mapstorm/internal/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	configFile   string
	inputFormat  string
	outputFormat string
	minimized    bool
	noExtensions bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mapstorm",
	Short: "Mapstorm - scriptable tile map toolkit",
	Long: `Mapstorm reads, writes, and converts tile maps.

JSON and XML map formats are built in. Additional formats come from Lua
extensions dropped into the extension search paths; each extension
registers one or more formats with a read and/or write callback.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: standard locations)")
	rootCmd.PersistentFlags().BoolVar(&noExtensions, "no-extensions", false, "skip loading extensions")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mapstorm version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mapstorm %s (%s)\n", version, commit)
	},
}

// loadConfig reads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

// newApp assembles the application and loads extensions unless disabled.
func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}

	if !noExtensions {
		if err := a.LoadExtensions(cmd.Context()); err != nil {
			return nil, err
		}
	}
	return a, nil
}
