// Command tripctl runs the place pipeline from the terminal against the same store as the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	database "github.com/xco2/tripspot/app/db"
	appLogger "github.com/xco2/tripspot/app/logger"
	"github.com/xco2/tripspot/config"
	"github.com/xco2/tripspot/internal/api/store"
	"github.com/xco2/tripspot/internal/container"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{open: openContainer}
	err := rootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openContainer builds the services from config.yml, TRIPSPOT_* variables and .env.
func openContainer(ctx context.Context, ephemeral bool) (*container.Container, error) {
	_ = godotenv.Load()

	cfg, err := config.InitConfig()
	if err != nil {
		return nil, fmt.Errorf("error initializing config: %w", err)
	}
	logger := appLogger.Setup(os.Stderr, cfg.Development())

	if ephemeral {
		return container.Build(&cfg, store.NewMemoryRepository(), logger), nil
	}

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		return nil, err
	}
	c, err := container.NewContainer(&cfg, logger)
	if err != nil {
		return nil, err
	}
	if !c.WaitForDB(ctx) {
		c.Close()
		return nil, fmt.Errorf("database %s is not ready", cfg.Repositories.Postgres.Host)
	}
	return c, nil
}
