package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/mxw13579/logstream-server/internal/config"
	"github.com/mxw13579/logstream-server/internal/http/handler"
	mw "github.com/mxw13579/logstream-server/internal/http/middleware"
	"github.com/mxw13579/logstream-server/internal/pubsub"
	redisclient "github.com/mxw13579/logstream-server/internal/redis"
	"github.com/mxw13579/logstream-server/internal/remote"
	"github.com/mxw13579/logstream-server/internal/service"
	"github.com/mxw13579/logstream-server/internal/stream"
	"github.com/mxw13579/logstream-server/pkg/fmtt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	// Read env
	isDev := os.Getenv("ENV") == "dev"

	// Load config
	cfg, err := config.Load("logstream-server.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create Zap logger
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	// Create Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	// Wire collaborators
	rdb := redisclient.NewClient(cfg.RedisAddr, 0, log)
	defer rdb.Close()

	executor := remote.NewSSHExecutor(log)
	directory := redisclient.NewConnRepository(log, rdb)
	publisher := pubsub.NewRedisPublisher(log, rdb)
	sink := stream.NewPublishSink(log, publisher)

	registry := stream.NewRegistry(log, executor, directory, sink, stream.RegistryOptions{
		ShutdownGrace: cfg.ShutdownGrace(),
	})
	history := stream.NewHistoryFetcher(log, executor)
	mirrorsvc := service.NewMirrorService(log, executor)

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID()) // Attach request ID for tracing; early in the chain so it's available everywhere

		if isDev { // Enable CORS for local frontend dev
			r.Use(cors.New(cors.Config{
				AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:3000"},
				AllowMethods:     []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:     []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders:    []string{"X-Request-ID"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			}))
		} else { // Behind Nginx + TLS
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https", // Fix scheme for secure cookies
				},
			}))
		}

		r.Use(accessLog(log, isDev))

		r.Use(func(c *gin.Context) {
			// Enforce a hard 1MB max request body; every payload here is
			// a small JSON control message.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
			c.Next()
		})
	}

	// Register route handlers
	{
		r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

		{
			logshndlr := handler.NewLogsHandler(log, registry, history, directory)
			r.POST("/api/logs/stream/start", logshndlr.StartStream)
			r.POST("/api/logs/stream/stop", logshndlr.StopStream)
			r.GET("/api/logs/buffer", logshndlr.Buffer)
			r.GET("/api/logs/history", logshndlr.History)
		}

		{
			mirrorhndlr := handler.NewMirrorHandler(log, mirrorsvc, directory)
			r.POST("/api/mirror/configure", mirrorhndlr.Configure)
			r.POST("/api/mirror/restart", mirrorhndlr.Restart)
			r.GET("/api/mirror/verify", mirrorhndlr.Verify)
		}
	}

	httpsrv := &http.Server{
		Addr:              cfg.ListenAddr + ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      15 * time.Second, // avoid forever-hangs on writes
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	go func() {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Block until a shutdown signal arrives, then tear down: HTTP first so
	// no new streams start, then every active session with bounded grace.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace()+5*time.Second)
	defer cancel()

	if err := httpsrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	registry.Shutdown(shutdownCtx)

	log.Info("server closed")
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("logstream-server %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// accessLog is a Gin middleware that records HTTP request/response details with Zap after handling.
func accessLog(log *zap.Logger, isDev bool) gin.HandlerFunc {
	log = log.Named("access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		// collect all errors from Gin context
		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		// errors.Join returns nil if errs is empty
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
			zap.String("request_id", mw.GetRequestID(c)),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			if isDev && joinedErr != nil {
				fields = append(fields, zap.String("error_chain", fmtt.ErrChain(joinedErr)))
			}
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// helpers

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
