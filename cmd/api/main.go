package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"textcleaner_go_backend/cmd/api/config"
	"textcleaner_go_backend/internal/api"
	"textcleaner_go_backend/internal/auth"
	"textcleaner_go_backend/internal/models"
	"textcleaner_go_backend/internal/services"
	"textcleaner_go_backend/internal/utils/broker"
	"textcleaner_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	registry := services.NewSessionRegistry(cfg.SessionIdleTimeout)
	registry.StartReaper(ctx, cfg.SessionReapInterval)

	pricingService, err := services.NewPricingService(cfg.PriceTiers, cfg.Currency)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid price tier table")
	}

	messageBroker := broker.NewBroker()
	extractionService := services.NewExtractionService()

	ingestionService := services.NewIngestionService(
		registry,
		extractionService,
		pricingService,
		messageBroker,
		cfg.SyncThresholdBytes,
		cfg.MaxFileSizeBytes,
		cfg.QueueDepth,
	)
	// Workers get their own context so they keep processing submissions
	// accepted while the HTTP server is draining; it is cancelled only
	// after the drain below.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	ingestionService.Start(workerCtx, cfg.WorkerCount)

	stripeGateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	paymentService := services.NewPaymentService(
		registry,
		stripeGateway,
		messageBroker,
		cfg.Currency,
		cfg.DonationAmounts,
	)

	fileFetcher := services.NewHTTPFileFetcher(nil)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // TODO: Implement a more secure check in production
		},
	}
	wsHandler := wsocket.NewHandler(messageBroker, upgrader)

	api.SetupRoutes(r, registry, ingestionService, paymentService, fileFetcher, cfg.JWTSecret, cfg.MaxFileSizeBytes)
	auth.SetupRoutes(r, registry, cfg.JWTSecret)

	r.GET("/ws", auth.AuthMiddleware(registry, cfg.JWTSecret), func(c *gin.Context) {
		v, _ := c.Get("session")
		session, ok := v.(models.Session)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found in context"})
			return
		}
		wsHandler.HandleWebSocket(c.Writer, c.Request, session)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	// No request can enqueue past this point; drain the pool, then release
	// the workers.
	if err := ingestionService.Shutdown(); err != nil {
		log.Error().Err(err).Msg("ingestion drain failed")
	}
	workerCancel()
	log.Info().Msg("server stopped")
}
