package cmd

import (
	"fmt"
	"os"
	"time"

	coreconfig "github.com/AzielCF/az-crm/core/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg *coreconfig.Config

	flagPort      string
	flagDebug     bool
	flagBasicAuth []string
	flagBasePath  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-crm",
	Short: "WhatsApp connection core for the CRM",
	Long: `Connects each tenant's WhatsApp number through the Evolution API provider,
ingests its webhooks into conversation history and forwards inbound messages
to the automation workflow.`,
	PersistentPreRunE: loadConfig,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	initFlags()
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&flagBasicAuth,
		"basic-auth", "b",
		nil,
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagBasePath,
		"base-path", "",
		"",
		`base path for subpath deployment --base-path <string> | example: --base-path="/crm"`,
	)
}

// loadConfig reads .env (when present) and the environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("[CONFIG] could not read .env: %v", err)
	}

	loaded, err := coreconfig.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cmd.Flags().Changed("port") {
		loaded.App.Port = flagPort
	}
	if cmd.Flags().Changed("debug") {
		loaded.App.Debug = flagDebug
	}
	if cmd.Flags().Changed("basic-auth") {
		loaded.App.BasicAuth = flagBasicAuth
	}
	if cmd.Flags().Changed("base-path") {
		loaded.App.BasePath = flagBasePath
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if loaded.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg = loaded
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Errorln(err)
		os.Exit(1)
	}
}
