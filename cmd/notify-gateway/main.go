package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/clipcast/clipcast/internal/auth/jwt"
	"github.com/clipcast/clipcast/internal/common/cnst"
	"github.com/clipcast/clipcast/internal/common/config"
	"github.com/clipcast/clipcast/internal/gateway"
	"github.com/clipcast/clipcast/internal/notify"
	"github.com/clipcast/clipcast/internal/presence"
	"github.com/clipcast/clipcast/internal/relay"
	"github.com/clipcast/clipcast/pkg/logger"
	"github.com/clipcast/clipcast/pkg/metrics"
	"github.com/clipcast/clipcast/pkg/trace"
	"github.com/clipcast/clipcast/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of notify-gateway",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("notify-gateway version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "notify-gateway",
		Short: "Real-time notification gateway",
		Long:  `notify-gateway fans video-share notifications out to live websocket connections across the clipcast fleet`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "notify-gateway.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("Starting notify-gateway",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath),
		zap.Int("port", cfg.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		if cfg.Tracing.ServiceName == "" {
			cfg.Tracing.ServiceName = cnst.AppName
		}
		shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
		if err != nil {
			lg.Warn("Failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
				defer c()
				_ = shutdownTracing(shutdownCtx)
			}()
		}
	}

	verifier, err := jwt.NewService(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
		Duration:  cfg.JWT.Duration,
	})
	if err != nil {
		lg.Fatal("Failed to create token verifier", zap.Error(err))
	}

	registry, err := presence.NewRegistry(lg, &cfg.Presence)
	if err != nil {
		// Without the registry every handshake would be refused; fail fast.
		lg.Fatal("Failed to initialize presence registry", zap.Error(err))
	}

	rel, err := relay.NewRelay(lg, &cfg.Relay)
	if err != nil {
		// Degraded mode: keep serving connections held by this process.
		lg.Warn("Failed to connect cross-process relay, serving local-only delivery",
			zap.Error(err))
		rel = relay.NewLocalRelay()
	}

	m := metrics.New(cfg.Metrics)

	gw := gateway.NewGateway(lg, verifier, registry, rel, m)
	gw.Start(ctx)

	publisher := notify.NewPublisher(lg, registry, gw, m)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(cnst.AppName))
	}
	if cfg.Metrics.Enabled {
		router.Use(m.Middleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	gw.RegisterRoutes(router)
	publisher.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("Shutting down notify-gateway")
	cancel()

	gw.Shutdown(context.Background())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := rel.Close(); err != nil {
		lg.Warn("Failed to close relay", zap.Error(err))
	}
	if closer, ok := registry.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			lg.Warn("Failed to close presence registry", zap.Error(err))
		}
	}

	lg.Info("notify-gateway stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
