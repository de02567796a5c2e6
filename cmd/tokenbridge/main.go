package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mfigueredo/tokenbridge/internal/auth"
	"github.com/mfigueredo/tokenbridge/internal/cache"
	"github.com/mfigueredo/tokenbridge/internal/config"
	httpx "github.com/mfigueredo/tokenbridge/internal/http"
	"github.com/mfigueredo/tokenbridge/internal/http/handlers"
	"github.com/mfigueredo/tokenbridge/internal/identity"
	"github.com/mfigueredo/tokenbridge/internal/identity/cognito"
	"github.com/mfigueredo/tokenbridge/internal/jwks"
	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
	filestore "github.com/mfigueredo/tokenbridge/internal/store/file"
	"github.com/mfigueredo/tokenbridge/internal/token"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "tokenbridge",
		Short:         "Bearer-token verification and identity bridging service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (optional; env vars override)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	// .env is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.Log.Env,
		Level:       cfg.Log.Level,
		ServiceName: "tokenbridge",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cacheCfg cache.Config
	cacheCfg.Kind = cfg.Cache.Kind
	cacheCfg.Redis.Addr = cfg.Cache.Redis.Addr
	cacheCfg.Redis.DB = cfg.Cache.Redis.DB
	cacheCfg.Redis.Prefix = cfg.Cache.Redis.Prefix
	cacheClient, err := cache.New(cacheCfg)
	if err != nil {
		return err
	}

	keys := jwks.NewCache(
		config.MustDuration(cfg.JWKS.FetchTimeout),
		jwks.WithBacking(cacheClient),
	)

	verifier := token.NewVerifier(keys,
		token.CognitoProvider(cfg.CognitoIssuer(), cfg.CognitoJWKSURL(), cfg.Cognito.ClientID),
		token.AppleProvider(cfg.Apple.Audiences),
		token.GoogleProvider(cfg.Google.Audiences),
	)

	pool, err := cognito.New(ctx, cfg.AWS.Region, cfg.Cognito.UserPoolID)
	if err != nil {
		return fmt.Errorf("identity pool init: %w", err)
	}

	bridge := identity.NewBridge(identity.BridgeDeps{
		Pool:            pool,
		ClientID:        cfg.Cognito.ClientID,
		EmailAsUsername: cfg.EmailAsUsername(),
		Timeout:         config.MustDuration(cfg.Cognito.Timeout),
	})

	svc := auth.NewService(auth.Deps{Verifier: verifier, Bridge: bridge})
	users := filestore.New(cfg.Store.UsersFile)

	metricsHandler, err := httpx.RegisterMetrics(nil)
	if err != nil {
		return fmt.Errorf("metrics init: %w", err)
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Auth:               svc,
		Users:              users,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MetricsHandler:     metricsHandler,
		ReadyChecks: map[string]handlers.ReadyCheck{
			"cache": func(r *http.Request) error {
				return cacheClient.Set(r.Context(), "readyz:probe", []byte("1"), time.Minute)
			},
			"users_store": func(r *http.Request) error {
				_, err := users.ListAll(r.Context())
				return err
			},
		},
	})

	log.Info("starting",
		logger.String("env", cfg.App.Env),
		logger.String("addr", cfg.Server.Addr),
		logger.String("version", version),
	)

	return httpx.Start(ctx, httpx.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  config.MustDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.MustDuration(cfg.Server.WriteTimeout),
	}, router)
}
