package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/JustJay7/uyap-extractor/internal/app"
	"github.com/JustJay7/uyap-extractor/internal/config"
	"github.com/JustJay7/uyap-extractor/internal/database"
	"github.com/JustJay7/uyap-extractor/internal/server"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var logOpts []logger.Option
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logger.WithFile(cfg.LogFile))
	}
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, logOpts...)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	a, err := app.New(cfg, log, nil)
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}
	defer a.Close()

	if migrate {
		if err := database.Migrate(a.DB); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
		log.Info("Database migrations completed successfully")
		return
	}

	srv := server.New(a.Deps)

	log.Info("Starting UYAP extractor",
		"host", cfg.Host,
		"port", cfg.Port,
		"portal", cfg.PortalURL,
		"database", cfg.DatabasePath,
	)

	if err := srv.Run(); err != nil {
		log.Fatal("Server failed to start", "error", err)
	}
}
