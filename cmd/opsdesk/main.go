package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdeskhq/opsdesk/internal/config"
	"github.com/opsdeskhq/opsdesk/internal/db"
)

func main() {
	root := &cobra.Command{
		Use:   "opsdesk",
		Short: "Opsdesk conversation sync server",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run database migrations and start the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
