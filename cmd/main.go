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

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"storefront-service/internal/api"
	"storefront-service/internal/cache"
	"storefront-service/internal/config"
	"storefront-service/internal/consumer"
	"storefront-service/internal/repository"
	"storefront-service/internal/service"
	"storefront-service/internal/verification"
	"storefront-service/migrations"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "storefront-service").Logger()

func main() {
	rootCmd := &cobra.Command{
		Use:           "storefront-service",
		Short:         "storefront order and inventory service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		seedCommand(),
		adminTokenCommand(),
		hashPasswordCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create the MongoDB indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.BackendMongo {
				logger.Info().Msgf("Nothing to migrate for the %s backend", cfg.StoreBackend)
				return nil
			}
			store, err := repository.ConnectMongo(cmd.Context(), cfg.MongoURI, cfg.MongoDB, cfg.DBRetries, cfg.OrderTxTimeout, logger)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			if err := migrations.EnsureIndexes(cmd.Context(), 3, store.Database()); err != nil {
				return err
			}
			logger.Info().Msg("Indexes are up to date")
			return nil
		},
	}
}

func seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "insert products from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.BackendMongo {
				return fmt.Errorf("seed needs the %s backend", config.BackendMongo)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := repository.ConnectMongo(cmd.Context(), cfg.MongoURI, cfg.MongoDB, cfg.DBRetries, cfg.OrderTxTimeout, logger)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			products, err := service.NewCatalogService(store, nil).SeedProducts(cmd.Context(), f)
			if err != nil {
				return err
			}
			for _, p := range products {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID.Hex(), p.Title)
			}
			return nil
		},
	}
}

func adminTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "admin-token",
		Short: "print an admin token for the configured admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" || cfg.AdminEmail == "" {
				return errors.New("JWT_SECRET and ADMIN_EMAIL must be set")
			}
			auth := service.NewAuthService(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.JWTSecret, service.DefaultTokenTTL)
			token, err := auth.IssueToken(cfg.AdminEmail)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	orderCfg := service.OrderServiceConfig{
		Store:     store,
		Verifier:  verification.NewRecaptcha(cfg.RecaptchaSecret, cfg.RecaptchaMinScore),
		TxTimeout: cfg.OrderTxTimeout,
	}
	if cfg.RecaptchaSecret == "" {
		logger.Warn().Msg("RECAPTCHA_SECRET not set, orders carrying a verification token will be rejected")
	}

	var stockCache service.StockCache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msgf("Redis at %s is not reachable yet", cfg.RedisAddr)
		}
		stockCache = cache.NewProductCache(rdb, cfg.StockCacheTTL)
		orderCfg.StockCache = stockCache
		orderCfg.Idempotency = cache.NewIdempotencyGuard(rdb, cache.DefaultIdempotencyTTL)
	} else {
		logger.Info().Msg("REDIS_ADDR not set, stock cache and idempotency keys are disabled")
	}

	kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.OrderTopic)
	if kafkaWriter != nil {
		orderCfg.Events = kafkaWriter
	} else {
		logger.Info().Msg("KAFKA_BROKERS not set, order events are disabled")
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		// tokens from this secret die with the process
		jwtSecret = uuid.NewString()
		logger.Warn().Msg("JWT_SECRET not set, using an ephemeral secret")
	}

	orderService := service.NewOrderService(orderCfg)
	catalogService := service.NewCatalogService(store, stockCache)
	authService := service.NewAuthService(cfg.AdminEmail, cfg.AdminPasswordHash, jwtSecret, service.DefaultTokenTTL)

	e := api.NewServer(api.ServerConfig{
		Orders:         api.NewOrderHandler(orderService),
		Products:       api.NewProductHandler(catalogService),
		Auth:           api.NewAuthHandler(authService),
		JWTSecret:      authService.Secret(),
		RateLimit:      cfg.RateLimit,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	g, gctx := errgroup.WithContext(ctx)
	if kafkaWriter != nil && stockCache != nil {
		reader := consumer.NewKafkaReader(cfg.KafkaBrokers, cfg.OrderTopic, consumer.DefaultGroupID)
		g.Go(func() error {
			return consumer.NewConsumer(reader, stockCache).Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info().Msgf("Listening on :%s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info().Msg("Shutting down")
		err := e.Shutdown(shutdownCtx)
		if kafkaWriter != nil {
			if cerr := kafkaWriter.Close(); cerr != nil {
				logger.Error().Err(cerr).Msg("Failed to close kafka writer")
			}
		}
		if rdb != nil {
			if cerr := rdb.Close(); cerr != nil {
				logger.Error().Err(cerr).Msg("Failed to close redis client")
			}
		}
		if cerr := store.Close(shutdownCtx); cerr != nil {
			logger.Error().Err(cerr).Msg("Failed to close store")
		}
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn().Msg("Using the in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	store, err := repository.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB, cfg.DBRetries, cfg.OrderTxTimeout, logger)
	if err != nil {
		return nil, err
	}
	if err := migrations.EnsureIndexes(ctx, 3, store.Database()); err != nil {
		return nil, err
	}
	return store, nil
}
