package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	bootstrap "github.com/goliatone/go-auth-bootstrap"
	"github.com/goliatone/go-auth-bootstrap/logging"
)

const (
	LogLevelKey   = "log.level"
	LogFormatKey  = "log.format"
	LogNoColorKey = "log.no_color"
)

var (
	configFile string

	// set by PersistentPreRunE
	appConfig *bootstrap.ViperSource
	appLogger logging.ZLogger
)

var rootCmd = &cobra.Command{
	Use:   "authsvc",
	Short: "Identity store and bearer token gateway",
	Long: `authsvc hosts the account endpoints backed by the identity store and
protects API routes with bearer tokens issued by the configured authority.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.Setup(logging.Options{
			Level:   viper.GetString(LogLevelKey),
			Format:  viper.GetString(LogFormatKey),
			NoColor: viper.GetBool(LogNoColorKey),
		})
		if err != nil {
			return err
		}
		appLogger = l

		src, err := bootstrap.LoadConfig(configFile)
		if err != nil {
			return err
		}
		appConfig = src
		if used := src.ConfigFileUsed(); used != "" {
			log.Debug().Msgf("using config file: %s", used)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Configuration file (default is ./authsvc.{yaml,json,toml})")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = viper.BindPFlag(LogLevelKey, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("log-format", logging.FormatConsole, "Log format (console, json)")
	_ = viper.BindPFlag(LogFormatKey, rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.PersistentFlags().Bool("no-color", false, "Disable color output")
	_ = viper.BindPFlag(LogNoColorKey, rootCmd.PersistentFlags().Lookup("no-color"))

	viper.SetEnvPrefix(bootstrap.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	viper.AutomaticEnv()

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func loadedConfig() (*bootstrap.ViperSource, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return appConfig, nil
}
