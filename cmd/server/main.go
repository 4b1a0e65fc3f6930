package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/bassista/docsweep/internal/api/middleware"
	route "github.com/bassista/docsweep/internal/api/route"
	appctx "github.com/bassista/docsweep/internal/app"
	"github.com/bassista/docsweep/internal/config"
	"github.com/bassista/docsweep/internal/document"
	"github.com/bassista/docsweep/internal/logger"
	"github.com/bassista/docsweep/internal/repository"
	"github.com/bassista/docsweep/internal/save"
	"github.com/bassista/docsweep/internal/sweeper"
)

func main() {
	// .env is optional; real env vars always win.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Misc.LogLevel)
	if err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', using 'info': %v", cfg.Misc.LogLevel, err)
		logLevel = logrus.InfoLevel
	}
	logger.Logger.SetLevel(logLevel)
	logger.WithComponent("main").Infof("control API will run on port: %d", cfg.Server.Port)
	logger.WithComponent("main").Infof("idle interval: %v, roster: %s", cfg.Sweep.IdleInterval, cfg.Sweep.RosterPath)

	repo, err := repository.NewRosterRepository(cfg.Sweep.RosterPath)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init roster repository: %v", err)
	}

	roster, err := repo.Load(context.Background())
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot load roster file: %v", err)
	}

	fs := afero.NewOsFs()
	registry := document.NewRegistry(func(id, path string) document.Document {
		return document.NewFile(id, path, fs)
	})
	if err := registry.Replace(*roster); err != nil {
		logger.WithComponent("main").Fatalf("cannot restore roster: %v", err)
	}
	if n := registry.Len(); n > 0 {
		logger.WithComponent("main").Infof("restored %d tracked documents from roster", n)
	}

	warnings := save.NewToggles(cfg.Sweep.SuppressFileModePrompts, cfg.Sweep.SuppressLockPrompts)
	exec := save.NewExecutor(warnings)
	sw := sweeper.New(registry, exec)

	app, err := appctx.New(cfg, registry, repo, sw, exec, warnings, fs)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer app.Shutdown()

	if err := app.StartWatchers(); err != nil {
		logger.WithComponent("main").Fatalf("cannot start watchers: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := gin.New()
	r.Use(middleware.HoneybadgerMiddleware(logger.Logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.Server.CORSAllowedOrigins))
	r.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	route.SetupRoutes(r, app)

	srv := createGraceHTTPServer(app.BaseCtx, "control-api", cfg.Server, r)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Fatal(err)
	}
}

func createGraceHTTPServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	return httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
}
