// Command roomd runs the anonymous chat room engine: the WebSocket ingress,
// the management HTTP surface, and the background write sink, all wired to a
// single SQLite-backed store.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nullboard/roomd/internal/v1/admission"
	"github.com/nullboard/roomd/internal/v1/auth"
	"github.com/nullboard/roomd/internal/v1/chatroom"
	"github.com/nullboard/roomd/internal/v1/config"
	"github.com/nullboard/roomd/internal/v1/health"
	"github.com/nullboard/roomd/internal/v1/logging"
	"github.com/nullboard/roomd/internal/v1/management"
	"github.com/nullboard/roomd/internal/v1/middleware"
	"github.com/nullboard/roomd/internal/v1/ratelimit"
	"github.com/nullboard/roomd/internal/v1/store"
	"github.com/nullboard/roomd/internal/v1/tracing"
	"github.com/nullboard/roomd/internal/v1/transport"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func loadDotEnv() {
	for _, path := range []string{".env", "../../.env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func main() {
	loadDotEnv()

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		panic(err)
	}
	logger := logging.GetLogger()

	ctx := context.Background()

	tracingEnabled := cfg.OTelCollectorAddr != ""
	if tracingEnabled {
		tp, err := tracing.InitTracer(ctx, "roomd", cfg.OTelCollectorAddr)
		if err != nil {
			logger.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer tracing.Shutdown(ctx, tp)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	sink := store.NewSink(st, cfg.WriteBatchSize, cfg.WriteBatchInterval)
	sinkCtx, cancelSink := context.WithCancel(ctx)
	go sink.Run(sinkCtx)

	admissionCounter := admission.NewCounter(cfg.AdmissionCeiling)

	opts := chatroom.Options{
		RateLimitInterval: cfg.RateLimitInterval,
		CoalesceWindow:    cfg.CoalesceWindow,
	}
	hub := transport.NewHub(admissionCounter, st, sink, opts, cfg.OutboundMailboxSize, cfg.AllowedOrigins)

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	managementValidator := auth.NewValidator(cfg.ManagementSharedSecret, "roomd")
	rl, err := ratelimit.NewRateLimiter(cfg, redisClient, managementValidator)
	if err != nil {
		logger.Fatal("failed to build rate limiter", zap.Error(err))
	}

	healthHandler := health.NewHandler(st, redisClient)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if tracingEnabled {
		router.Use(otelgin.Middleware("roomd"))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = cfg.AllowedOrigins == ""
	if cfg.AllowedOrigins != "" {
		corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	}
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/ws/rooms/:room_id", hub.ServeWs)

	management.RegisterRoutes(router.Group("/api/v1"), hub, managementValidator, rl)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("roomd starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	cancelSink()
	sink.Wait()

	logger.Info("roomd exited")
}

func splitOrigins(raw string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if part := raw[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
