package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

const shutdownTimeout = 30 * time.Second

func newTokenManager(cfg server.Config) *auth.TokenManager {
	return auth.NewTokenManager(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: "roomchat",
	})
}

type ServeCmd struct {
	flags *Flags
}

// NewServeCmd creates the serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "serve",
		Usage:       "Run the chat server",
		UsageText:   "roomchat serve",
		Description: "Serves the room API and room WebSockets until interrupted.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.With().Str("component", "roomchat").Logger()

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	srv := server.New(cfg, st, newTokenManager(cfg), log.Logger)
	httpServer := server.CreateServer(cfg.Port, srv.Handler())

	stop := func(ctx context.Context) error {
		httpErr := server.ShutdownServer(ctx, httpServer, logger)
		hubErr := srv.Hub().Shutdown(shutdownTimeout)
		storeErr := st.Close()
		return errors.Join(httpErr, hubErr, storeErr)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, logger)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"roomchat": func(ctx context.Context) error {
				logger.Info().Msg("graceful shutdown initiated")
				return stop(ctx)
			},
		},
	)

	var exitCode int
	select {
	case err := <-serveErr:
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return errors.Join(fmt.Errorf("http server: %w", err), stop(shutdownCtx))
		}
		// the listener was closed by the shutdown operation
		exitCode = <-wait
	case exitCode = <-wait:
	}

	if exitCode != 0 {
		return cli.Exit("shutdown did not complete cleanly", exitCode)
	}
	logger.Info().Msg("shutdown completed")
	return nil
}

type AddUserCmd struct {
	flags *Flags
	name  string
	email string
}

// NewAddUserCmd creates the adduser command
func NewAddUserCmd(flags *Flags) *AddUserCmd {
	return &AddUserCmd{flags: flags}
}

// Register adds the adduser command to the application
func (cmd *AddUserCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "adduser",
		Usage:       "Create a user and print a token for it",
		UsageText:   "roomchat adduser --name <name> --email <email>",
		Description: "Creates a user in the configured store and prints a signed token usable as the jwt cookie or a Bearer header.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "display name",
				Required:    true,
				Destination: &cmd.name,
			},
			&cli.StringFlag{
				Name:        "email",
				Usage:       "email address",
				Required:    true,
				Destination: &cmd.email,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *AddUserCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	name := strings.TrimSpace(cmd.name)
	if name == "" {
		return errors.New("name must not be blank")
	}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	user, err := st.CreateUser(ctx, name, strings.TrimSpace(cmd.email))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	token, err := newTokenManager(cfg).Issue(user.ID)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Printf("user_id: %s\ntoken:   %s\n", user.ID, token)
	return nil
}
