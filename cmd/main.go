package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cronus "github.com/E3dvis/cronustraining"
	_ "github.com/E3dvis/cronustraining/docs"
	"github.com/E3dvis/cronustraining/internal/device"
	"github.com/E3dvis/cronustraining/internal/handlers"
	"github.com/E3dvis/cronustraining/internal/logger"
	"github.com/E3dvis/cronustraining/internal/repository"
	"github.com/E3dvis/cronustraining/internal/server"
	"github.com/E3dvis/cronustraining/internal/service"

	"github.com/spf13/viper"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}
	if lvl := viper.GetString("log_level"); lvl != "" && lvl != logger.InfoLevel {
		log = logger.New(lvl)
	}

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	client := device.New(viper.GetString("device.base_url"), viper.GetDuration("device.timeout"))
	repos := repository.NewRepository(db)
	services := service.NewService(client, repos, log, runsConfig(), viper.GetString("auth.signing_key"))
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the connectivity probe
	go services.Connectivity.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "cronus.db")
		dbPath = "cronus.db"
	}
	return repository.InitDB(dbPath)
}

// runsConfig assembles the run-engine configuration from config.yml.
func runsConfig() service.RunsConfig {
	channels := viper.GetInt("runs.channels")
	if channels <= 0 {
		channels = 2
	}
	return service.RunsConfig{
		LogDir:   viper.GetString("runs.log_dir"),
		Channels: channels,
		Defaults: runDefaults(channels),
		Timings:  service.DefaultTimings(),
	}
}

// runDefaults merges the shared run parameters with per-channel
// overrides from the runs.overrides.<n> section.
func runDefaults(channels int) map[int]cronus.TestParameters {
	base := cronus.TestParameters{
		WaitTime:          viper.GetFloat64("runs.defaults.wait_time"),
		Cycles:            viper.GetInt("runs.defaults.cycles"),
		MeasurePowerCurve: viper.GetBool("runs.defaults.measure_power_curve"),
	}

	out := make(map[int]cronus.TestParameters, channels)
	for ch := 1; ch <= channels; ch++ {
		p := base
		key := fmt.Sprintf("runs.overrides.%d", ch)
		if viper.IsSet(key + ".wait_time") {
			p.WaitTime = viper.GetFloat64(key + ".wait_time")
		}
		if viper.IsSet(key + ".cycles") {
			p.Cycles = viper.GetInt(key + ".cycles")
		}
		if viper.IsSet(key + ".measure_power_curve") {
			p.MeasurePowerCurve = viper.GetBool(key + ".measure_power_curve")
		}
		if viper.IsSet(key + ".test_min") {
			v := viper.GetFloat64(key + ".test_min")
			p.TestMin = &v
		}
		if viper.IsSet(key + ".test_max") {
			v := viper.GetFloat64(key + ".test_max")
			p.TestMax = &v
		}
		out[ch] = p
	}
	return out
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop active runs first so their summaries get persisted
	services.TestRuns.StopAll()

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
