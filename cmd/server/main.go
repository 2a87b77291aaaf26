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

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-org-server/auth"
	"github.com/jrsteele09/go-org-server/credentials"
	"github.com/jrsteele09/go-org-server/internal/config"
	"github.com/jrsteele09/go-org-server/internal/logging"
	"github.com/jrsteele09/go-org-server/internal/telemetry"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/server"
	"github.com/jrsteele09/go-org-server/storage/memory"
	"github.com/jrsteele09/go-org-server/storage/postgres"
	"github.com/jrsteele09/go-org-server/storage/sqlite"
	"github.com/jrsteele09/go-org-server/token"
	"github.com/jrsteele09/go-org-server/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

// store is what the process needs from any storage backend
type store interface {
	Users() users.Repo
	Organisations() organisations.Repo
	auth.AccountRepo
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.New(ctx, c)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.GetShutdownTimeout())
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	db, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}()

	handler, err := newServer(c, db)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer, c.GetShutdownTimeout())
	})
	return g.Wait()
}

func newServer(c config.Config, db store) (*server.Server, error) {
	hasher, err := credentials.New(c.GetPasswordHasher())
	if err != nil {
		return nil, err
	}

	authService, err := auth.NewService(auth.Repos{Users: db.Users(), Accounts: db}, hasher)
	if err != nil {
		return nil, err
	}

	directory, err := organisations.NewDirectory(db.Organisations())
	if err != nil {
		return nil, err
	}

	return server.New(c, server.Services{
		Auth:          authService,
		Organisations: directory,
		Tokens:        token.New(token.NewHMACSigner(c.GetSigningSecret())),
		Health:        db,
	}, server.WithVersion(version))
}

func openStore(ctx context.Context, c config.StorageConfig) (store, error) {
	switch c.GetStorageDriver() {
	case config.DriverSQLite:
		log.Info().Str("path", c.GetSQLitePath()).Msg("using sqlite store")
		db, err := sqlite.Open(c.GetSQLitePath())
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, nil
	case config.DriverPostgres:
		log.Info().Msg("using postgres store")
		db, err := postgres.Open(ctx, c.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return db, nil
	default:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
