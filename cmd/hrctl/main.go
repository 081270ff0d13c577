// Command hrctl is the operator CLI for the HR assistant database.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hrdesk/hr-assistant/internal/config"
	"github.com/hrdesk/hr-assistant/internal/store"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hrctl",
	Short: "Manage the HR assistant database",
	Long:  `Run migrations, seed the knowledge base, preview knowledge base answers and compute analytics rollups.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		l, err := logger.Build(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "hrctl"})
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		log = l
		return nil
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB connects and migrates the configured database.
func openDB() (*gorm.DB, error) {
	db, err := store.Open(store.Options{
		Driver:       cfg.DatabaseDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		ConnMaxLife:  cfg.DBConnMaxLife,
	})
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(db); err != nil {
		_ = store.Close(db)
		return nil, err
	}
	return db, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
