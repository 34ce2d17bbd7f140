// cmd/migrate/main.go
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/unclebandit/campaign-panel/internal/db"
	"github.com/unclebandit/campaign-panel/internal/logging"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file")
	dsn := pflag.String("dsn", "", "postgres connection string, defaults to DATABASE_URL")
	pflag.Parse()

	log := logging.New(os.Stderr, "info", "console")
	if err := godotenv.Load(*envFile); err != nil {
		log.Info().Msg("no env file found, relying on OS environment variables")
	}
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}
	if *dsn == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	log.Info().Msg("campaign archive schema applied")
}
