package main

import (
	"fmt"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"

	bootstrap "github.com/goliatone/go-auth-bootstrap"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective JWT settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}

		settings := bootstrap.DefaultJWTSettings()
		if err := cfg.BindSection(bootstrap.SectionJWT, &settings); err != nil {
			return err
		}

		fmt.Println(print.MaybePrettyJSON(map[string]any{
			"config_file":     cfg.ConfigFileUsed(),
			"identity_set":    cfg.GetConnectionString(bootstrap.IdentityConnectionKey) != "",
			"signing_key_set": settings.Key != "",
			"jwt":             settings,
		}))

		if err := settings.Validate(); err != nil {
			return fmt.Errorf("invalid %s: %w", bootstrap.SectionJWT, err)
		}
		return nil
	},
}

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List the authorization policies and registered services",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}

		bundle, err := bootstrap.NewBuilder(bootstrap.WithLogger(appLogger.Named("bootstrap"))).
			AddServiceLayer().
			AddIdentityService(cmd.Context(), cfg).
			Build()
		if err != nil {
			return err
		}
		defer bundle.Close()

		fmt.Println(print.MaybePrettyJSON(map[string]any{
			"scheme":   bundle.Scheme.Name(),
			"policies": bundle.Policies.Names(),
			"services": bundle.Services.Describe(),
			"messages": bundle.Mediator.Types(),
		}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(policiesCmd)
}
