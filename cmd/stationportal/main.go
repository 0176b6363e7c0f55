// Command stationportal serves the station portal API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/router-for-me/StationPortal/internal/app"
	"github.com/router-for-me/StationPortal/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if errExec := newRootCommand().ExecuteContext(context.Background()); errExec != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var appCfg config.AppConfig
	root := &cobra.Command{
		Use:          "stationportal",
		Short:        "Fuel station admin dashboard API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&appCfg.ConfigPath, "config", "c", "", "config file (default $STATIONPORTAL_CONFIG or ./config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and websocket server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return app.RunServer(ctx, appCfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update tables and seed permissions and roles",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.Migrate(cmd.Context(), appCfg)
			},
		},
		newCreateAdminCommand(&appCfg),
		newCreateAPIKeyCommand(&appCfg),
	)
	return root
}

func newCreateAdminCommand(appCfg *config.AppConfig) *cobra.Command {
	var params app.CreateAdminParams
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a user holding the admin role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if params.Password == "" {
				params.Password = os.Getenv("STATIONPORTAL_ADMIN_PASSWORD")
			}
			user, errCreate := app.CreateAdmin(cmd.Context(), *appCfg, params)
			if errCreate != nil {
				return errCreate
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&params.Username, "username", "admin", "login name")
	cmd.Flags().StringVar(&params.Email, "email", "", "email address")
	cmd.Flags().StringVar(&params.Password, "password", "", "password (default $STATIONPORTAL_ADMIN_PASSWORD)")
	return cmd
}

func newCreateAPIKeyCommand(appCfg *config.AppConfig) *cobra.Command {
	var params app.CreateAPIKeyParams
	cmd := &cobra.Command{
		Use:   "create-api-key",
		Short: "Issue an API key for the external report endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, errCreate := app.CreateAPIKey(cmd.Context(), *appCfg, params)
			if errCreate != nil {
				return errCreate
			}
			log.Warn("the key is shown only once; store it now")
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	cmd.Flags().StringVar(&params.Name, "name", "", "display name")
	cmd.Flags().StringVar(&params.Scope, "scope", "", "external_sales, am_sales_report or am_summary_report")
	cmd.Flags().StringVar(&params.Username, "owner", "", "username owning the key (required for area reports)")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}
