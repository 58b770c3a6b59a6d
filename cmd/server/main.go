package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/chukwukap/waffles/internal/answer"
	"github.com/chukwukap/waffles/internal/appconfig"
	"github.com/chukwukap/waffles/internal/chain"
	"github.com/chukwukap/waffles/internal/gateway"
	"github.com/chukwukap/waffles/internal/models"
	"github.com/chukwukap/waffles/internal/progress"
	"github.com/chukwukap/waffles/internal/repository"
	"github.com/chukwukap/waffles/internal/session"
	"github.com/chukwukap/waffles/internal/settlement"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := appconfig.NewConfigFromEnv()
	clock := clockwork.NewRealClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := repository.Connect(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	repo, err := repository.NewRepository(pool)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository")
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	guard, err := answer.NewRedisGuard(&answer.RedisGuardConfig{RedisClient: redisClient})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create acceptance guard")
	}

	// Core services
	answerService, err := answer.NewService(repo, repo, guard, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create answer service")
	}
	tracker, err := progress.NewTracker(repo, repo, repo, guard, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create resume tracker")
	}

	// Event bus
	publisher, err := session.NewNATSPublisher(ctx, cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	// Session engine
	engine, err := session.NewEngine(repo, publisher, repo, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session engine")
	}
	if err := watchActiveGames(ctx, engine, repo); err != nil {
		log.Fatal().Err(err).Msg("failed to watch active games")
	}

	// Gateway
	ring := gateway.NewEventRing(32)
	presence, err := gateway.NewPresence(&gateway.PresenceConfig{
		RedisClient: redisClient,
		Clock:       clock,
		OnChange:    gateway.BroadcastOnChange(publisher, clock),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create presence tracker")
	}
	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), repo, presence, ring, publisher)

	consumerConfig := gateway.DefaultJetStreamConsumerConfig()
	consumerConfig.URL = cfg.NATSURL
	consumer, err := gateway.NewEventConsumer(manager, ring, consumerConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	consumer.WithChatStore(repo)
	defer consumer.Stop()

	// Settlement
	runner, err := setupSettlement(cfg, repo, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create settlement runner")
	}

	// HTTP surface
	wsHandler := gateway.NewWebSocketHandler(manager)
	apiHandler, err := gateway.NewAPIHandler(answerService, tracker, repo, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create api handler")
	}

	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)
	apiHandler.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go manager.Start(ctx)
	go func() {
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("session engine stopped")
		}
	}()
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("event consumer stopped")
		}
	}()
	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("settlement runner stopped")
		}
	}()
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	time.Sleep(1 * time.Second)
	log.Info().Msg("shutdown complete")
}

// watchActiveGames puts every scheduled or live game under the engine's
// watch so a restart resumes phase broadcasting without gaps.
func watchActiveGames(ctx context.Context, engine *session.Engine, repo *repository.Repository) error {
	for _, status := range []models.GameStatus{models.GameStatusScheduled, models.GameStatusLive} {
		games, err := repo.ListGamesByStatus(ctx, status)
		if err != nil {
			return err
		}
		for _, game := range games {
			if err := engine.Watch(ctx, game.ID); err != nil {
				log.Error().Err(err).Str("game_id", game.ID.String()).Msg("failed to watch game")
			}
		}
	}
	return nil
}

func setupSettlement(cfg appconfig.Config, repo *repository.Repository, clock clockwork.Clock) (*settlement.Runner, error) {
	var schedule *settlement.PrizeSchedule
	if cfg.PrizeSchedulePath != "" {
		loaded, err := settlement.LoadPrizeSchedule(cfg.PrizeSchedulePath)
		if err != nil {
			return nil, err
		}
		schedule = loaded
	}

	// The simulated chain backend stands in until a production token client
	// is wired; the settlement service only sees the chain.Client interface.
	wallet := cfg.PayoutWalletAddress
	if wallet == "" {
		wallet = "sim-payout-wallet"
	}
	chainClient := chain.NewSimClient(map[string]decimal.Decimal{
		wallet: decimal.NewFromInt(1_000_000_000),
	})

	service, err := settlement.NewService(&settlement.Config{
		GameRepo:       repo,
		ProgressRepo:   repo,
		Chain:          chainClient,
		Schedule:       schedule,
		WalletAddress:  wallet,
		MaxAttempts:    cfg.SettleMaxAttempts,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Clock:          clock,
	})
	if err != nil {
		return nil, err
	}
	return settlement.NewRunner(service, repo, clock, cfg.SettlePollInterval)
}
