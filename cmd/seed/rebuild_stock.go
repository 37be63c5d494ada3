package main

import (
	"fmt"
	"log"

	"github.com/urfave/cli/v2"

	"github.com/primastock/inventory-service/internal/repository/postgres"
)

// runRebuildStock replays the whole movement ledger and repairs any
// stock level rows that drifted from it. Intended for recovery after a
// bad manual edit or a restored backup.
func runRebuildStock(c *cli.Context) error {
	db, err := postgres.NewDBFromURL("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	repo := postgres.NewStockRepository(db)

	log.Println("Rebuilding stock levels from the movement ledger...")
	corrected, err := repo.RebuildStockLevels(c.Context)
	if err != nil {
		return fmt.Errorf("failed to rebuild stock levels: %w", err)
	}

	log.Printf("Rebuild complete, %d stock level rows corrected\n", corrected)
	return nil
}
