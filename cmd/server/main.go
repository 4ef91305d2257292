package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/desert5047-spec/test-keper-sub000/internal/config"
	"github.com/desert5047-spec/test-keper-sub000/internal/logging"
	"github.com/desert5047-spec/test-keper-sub000/server"
	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, closeStore, err := loginSessionRepo(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	handler, err := server.New(c, server.SupabaseFactory(c), sessions, nil)
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
		return shutdown(httpServer)
	})
	return g.Wait()
}

// loginSessionRepo keeps portal sessions in Redis when REDIS_URL is set, so
// several portal instances can share them.
func loginSessionRepo(ctx context.Context, c config.Config) (loginsession.Repo, func(), error) {
	if c.GetRedisURL() == "" {
		log.Info().Msg("Login sessions kept in memory")
		return loginsession.NewInMemoryRepo(), func() {}, nil
	}

	client, err := credstore.ConnectRedis(ctx, c.GetRedisURL())
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msg("Login sessions kept in Redis")
	store := credstore.NewRedisStore(client, c.GetAppScheme(), credstore.WithTTL(24*time.Hour))
	return loginsession.NewStoreRepo(store), func() { _ = client.Close() }, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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
