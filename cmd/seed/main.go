package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newDataDirFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "data-dir",
		Usage:   "Directory containing master seed data",
		Value:   "./data/seeds",
		EnvVars: []string{"SEED_DATA_DIR"},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Manage schema and seed data for the inventory database",
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "Apply the SQL migration files in order",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "migrations-dir",
						Usage:   "Directory containing migration SQL files",
						Value:   "./migrations",
						EnvVars: []string{"MIGRATIONS_DIR"},
					},
				},
				Action: runSchema,
			},
			{
				Name:  "master",
				Usage: "Seed master data (products, locations, suppliers)",
				Flags: []cli.Flag{
					newDBURLFlag(),
					newDataDirFlag(),
				},
				Action: runSeeder,
			},
			{
				Name:   "rebuild-stock",
				Usage:  "Rebuild the stock level projection from the movement ledger",
				Flags:  []cli.Flag{newDBURLFlag()},
				Action: runRebuildStock,
			},
			{
				Name:  "all",
				Usage: "Apply schema, then seed master data",
				Flags: []cli.Flag{
					newDBURLFlag(),
					newDataDirFlag(),
					&cli.StringFlag{
						Name:    "migrations-dir",
						Usage:   "Directory containing migration SQL files",
						Value:   "./migrations",
						EnvVars: []string{"MIGRATIONS_DIR"},
					},
				},
				Action: func(c *cli.Context) error {
					if err := runSchema(c); err != nil {
						return fmt.Errorf("error applying schema: %w", err)
					}
					if err := runSeeder(c); err != nil {
						return fmt.Errorf("error running master seed: %w", err)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openDB(c *cli.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func runSchema(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	dir := c.String("migrations-dir")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	ctx := c.Context
	for _, name := range files {
		path := filepath.Join(dir, name)
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", path, err)
		}

		log.Printf("Applying %s\n", name)
		if _, err := db.ExecContext(ctx, string(contents)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	log.Println("Schema applied successfully!")
	return nil
}

func runSeeder(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	dataDir := c.String("data-dir")

	log.Println("Starting database seeding...")

	if err := seedMasterData(c.Context, db, dataDir); err != nil {
		return fmt.Errorf("failed to seed master data: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// seedMasterData seeds the three master tables concurrently. They have
// no references between them, so each gets its own transaction.
func seedMasterData(ctx context.Context, db *sql.DB, dataDir string) error {
	g, ctx := errgroup.WithContext(ctx)

	seed := func(table string, columns []string, conflictColumn, file string) func() error {
		return func() error {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to begin transaction for %s: %w", table, err)
			}
			defer tx.Rollback()

			if err := seedTable(ctx, tx, table, columns, conflictColumn, filepath.Join(dataDir, file)); err != nil {
				return fmt.Errorf("failed to seed %s: %w", table, err)
			}
			return tx.Commit()
		}
	}

	g.Go(seed("products",
		[]string{"sku", "name", "cost_price", "selling_price", "min_stock_level"},
		"sku", "products.csv"))
	g.Go(seed("locations",
		[]string{"name"},
		"name", "locations.csv"))
	g.Go(seed("suppliers",
		[]string{"name", "email", "phone"},
		"name", "suppliers.csv"))

	return g.Wait()
}

// seedTable upserts the rows of a CSV file into a table, keyed on the
// conflict column. CSV columns are matched by header name so the file
// column order does not matter.
func seedTable(ctx context.Context, tx *sql.Tx, tableName string, columns []string, conflictColumn, filePath string) error {
	log.Printf("Seeding %s from %s\n", tableName, filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		tableName,
		buildColumnList(columns),
		strings.Join(placeholders, ", "),
		conflictColumn,
		buildUpdateClause(columns, conflictColumn),
	)

	rowCount := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to read CSV record: %w", err)
		}

		args := make([]interface{}, len(columns))
		for i, col := range columns {
			idx := getColumnIndex(header, col)
			if idx >= len(record) {
				return fmt.Errorf("column index %d out of bounds for column '%s' (record has %d columns)", idx, col, len(record))
			}
			args[i] = strings.TrimSpace(record[idx])
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		rowCount++
	}

	log.Printf("Successfully seeded %s (%d records)\n", tableName, rowCount)
	return nil
}

func buildColumnList(columns []string) string {
	return `"` + strings.Join(columns, `", "`) + `"`
}

func buildUpdateClause(columns []string, conflictColumn string) string {
	updates := make([]string, 0, len(columns))
	for _, col := range columns {
		if col != conflictColumn {
			updates = append(updates, fmt.Sprintf(`"%s" = EXCLUDED."%s"`, col, col))
		}
	}
	updates = append(updates, "updated_at = NOW()")
	return strings.Join(updates, ", ")
}

func getColumnIndex(header []string, column string) int {
	for i, h := range header {
		if h == column {
			return i
		}
	}

	panic(fmt.Sprintf("column '%s' not found in header: %v", column, header))
}
