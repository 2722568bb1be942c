package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/ashureev/revisahub/internal/store"
)

// storeEnv mirrors the server's store variables.
type storeEnv struct {
	Backend  string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DBPath   string `env:"DB_PATH" envDefault:"./data/revisahub.db"`
	MongoURL string `env:"MONGO_URL" envDefault:"mongodb://localhost:27017"`
	DBName   string `env:"DB_NAME" envDefault:"revisahub"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "revisactl",
		Short:         "Inspect RevisaHub tutor data",
		Long:          "revisactl prints compiled prompts, streaks and progress for stored student profiles.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("store", "", "Store backend: sqlite or mongo (overrides STORE_BACKEND)")
	root.PersistentFlags().String("db", "", "Path to SQLite database file (overrides DB_PATH)")
	root.PersistentFlags().String("mongo-url", "", "MongoDB URI (overrides MONGO_URL)")
	root.PersistentFlags().String("db-name", "", "MongoDB database name (overrides DB_NAME)")

	root.AddCommand(newPromptCmd())
	root.AddCommand(newStreakCmd())
	root.AddCommand(newProgressCmd())
	return root
}

// openStore resolves store options from flags (highest priority), then the environment.
func openStore(cmd *cobra.Command) (store.Repository, error) {
	var cfg storeEnv
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	override := func(flag string, dst *string) {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*dst = v
		}
	}
	override("store", &cfg.Backend)
	override("db", &cfg.DBPath)
	override("mongo-url", &cfg.MongoURL)
	override("db-name", &cfg.DBName)

	repo, err := store.Open(cmd.Context(), store.Options{
		Backend:  cfg.Backend,
		DBPath:   cfg.DBPath,
		MongoURL: cfg.MongoURL,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return repo, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
