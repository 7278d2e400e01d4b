package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	bootstrap "github.com/goliatone/go-auth-bootstrap"
	"github.com/goliatone/go-auth-bootstrap/api"
	"github.com/goliatone/go-auth-bootstrap/authz"
)

const (
	TransportFiber = "fiber"
	TransportHTTP  = "http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the account and identity endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		transport, _ := cmd.Flags().GetString("transport")
		origin, _ := cmd.Flags().GetString("origin")
		policy, _ := cmd.Flags().GetString("policy")
		migrate, _ := cmd.Flags().GetBool("migrate")

		cfg, err := loadedConfig()
		if err != nil {
			return err
		}

		bundle, err := bootstrap.NewBuilder(
			bootstrap.WithLogger(appLogger.Named("bootstrap")),
			bootstrap.WithAutoMigrate(migrate),
		).
			AddServiceLayer().
			AddIdentityService(cmd.Context(), cfg).
			Build()
		if err != nil {
			return fmt.Errorf("bootstrapping identity: %w", err)
		}
		defer bundle.Close()

		if _, ok := bundle.Policies.Get(policy); !ok {
			return fmt.Errorf("unknown policy %q, registered: %v", policy, bundle.Policies.Names())
		}

		controller := api.NewController(bundle.Mediator,
			api.WithOrigin(origin),
			api.WithLogger(appLogger.Named("api")),
		)

		var shutdown func(context.Context) error
		switch transport {
		case TransportFiber:
			srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
				return router.DefaultFiberOptions(fiber.New(fiber.Config{
					AppName:       "authsvc",
					StrictRouting: false,
				}))
			})
			controller.RegisterRoutes(srv.Router(), bundle.RouterMiddleware(policy))

			go func() {
				log.Info().Msgf("Starting fiber server on %s...", addr)
				if err := srv.Serve(addr); err != nil {
					log.Error().Err(err).Msg("server stopped")
				}
			}()
			shutdown = srv.Shutdown

		case TransportHTTP:
			server := &http.Server{
				Addr:              addr,
				Handler:           api.NewMux(controller, bundle.Authorize, policy),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				log.Info().Msgf("Starting http server on %s...", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("server crashed")
				}
			}()
			shutdown = server.Shutdown

		default:
			return fmt.Errorf("unknown transport %q, expected %s or %s", transport, TransportFiber, TransportHTTP)
		}

		sig := WaitExitSignal()
		log.Info().Msgf("Received %s, shutting down server...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

// WaitExitSignal blocks until the process is asked to stop.
func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

func init() {
	serveCmd.Flags().String("addr", ":5000", "Address to listen on")
	serveCmd.Flags().String("transport", TransportFiber, "HTTP stack to serve with (fiber, http)")
	serveCmd.Flags().String("origin", api.DefaultOrigin, "Public origin used in mailed links")
	serveCmd.Flags().String("policy", authz.ApiScopePolicy, "Policy protecting the identity endpoint")
	serveCmd.Flags().Bool("migrate", false, "Apply identity migrations before serving")

	rootCmd.AddCommand(serveCmd)
}
