// Command deeplink drives the callback reconciliation the way the mobile
// app does, with deep links and browser redirects pasted on stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	neturl "net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/desert5047-spec/test-keper-sub000/internal/config"
	"github.com/desert5047-spec/test-keper-sub000/internal/logging"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/rs/zerolog/log"
)

func main() {
	platformFlag := flag.String("platform", "native", "native, expo-dev-client or web")
	envFile := flag.String("env", ".env", "optional env file")
	flag.Parse()

	if err := run(*platformFlag, *envFile); err != nil {
		log.Fatal().Err(err).Msg("deeplink failed")
	}
}

func run(platformName, envFile string) error {
	c, err := config.New(envFile)
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	platform, err := reconcile.ParsePlatform(platformName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, c)
	if err != nil {
		return err
	}
	defer closeStores()

	client, err := supabase.New(supabase.Config{
		URL:     c.GetSupabaseURL(),
		AnonKey: c.GetSupabaseAnonKey(),
		JWKSURL: c.GetSupabaseJWKSURL(),
	}, stores.remember)
	if err != nil {
		return err
	}

	figure.NewFigure(c.GetAppName(), "cybermedium", true).Print()
	fmt.Printf("\nplatform %s, type help for commands\n", platform)

	a := newApp(ctx, client, appOptions{
		platform:  platform,
		deadlines: reconcile.DeadlinesFromConfig(c),
		scheme:    c.GetAppScheme(),
		expoHost:  c.GetExpoDevHost(),
		flags:     stores.general,
		remember:  stores.remember,
	}, os.Stdin, os.Stdout)
	return a.run(ctx)
}

type stores struct {
	// general holds flags and hints
	general credstore.Store
	// remember holds the session, persisted only while remember me is on
	remember *credstore.RememberMeStore
}

// openStores builds the device storage: Redis or memory as the general
// store, encrypted when a secret is configured, with session persistence
// gated by the remember me flag.
func openStores(ctx context.Context, c config.Config) (stores, func(), error) {
	var general, secureBacking credstore.Store = credstore.NewMemoryStore(), credstore.NewMemoryStore()
	closeFn := func() {}

	if url := c.GetRedisURL(); url != "" {
		client, err := credstore.ConnectRedis(ctx, url)
		if err != nil {
			return stores{}, nil, err
		}
		general = credstore.NewRedisStore(client, c.GetAppScheme())
		secureBacking = credstore.NewRedisStore(client, c.GetAppScheme()+"-secure")
		closeFn = func() { _ = client.Close() }
	}

	persistent := general
	if secret := c.GetSecureStoreSecret(); secret != "" {
		secure, err := credstore.NewSecureStore(secureBacking, []byte(secret))
		if err != nil {
			closeFn()
			return stores{}, nil, err
		}
		persistent = credstore.NewFallbackStore(secure, general)
	}

	return stores{
		general:  general,
		remember: credstore.NewRememberMeStore(persistent, general, c.GetRememberMeDefault(), sessionKeys(c)...),
	}, closeFn, nil
}

// sessionKeys names the auth client's entries so that toggling remember me
// also migrates what a previous run left behind.
func sessionKeys(c config.Config) []string {
	u, err := neturl.Parse(c.GetSupabaseURL())
	if err != nil {
		log.Warn().Err(err).Msg("cannot derive session keys from SUPABASE_URL")
		return nil
	}
	return []string{supabase.StorageKeyFor(u), supabase.CodeVerifierKeyFor(u)}
}
