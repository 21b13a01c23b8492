// Use: go run scripts/loaddata.go <driver> <dsn> <table> <rows>
//
// Seeds a database table with synthetic event rows so a sql source has
// something to read, e.g.:
//
//	go run scripts/loaddata.go sqlite /tmp/decant-demo.db events 100000
//	decant dump --sources-file examples/sources.yaml --source events
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const batchSize = 500

type eventRow struct {
	ID      int64
	Account string
	Amount  float64
	Settled bool
	Batch   string
}

func main() {
	if len(os.Args) != 5 {
		log.Panic("usage: loaddata <driver> <dsn> <table> <rows>")
	}

	argDriver := os.Args[1]
	argDSN := os.Args[2]
	argTable := os.Args[3]
	argTotalRows, err := strconv.Atoi(os.Args[4])
	if err != nil {
		log.Panic(err)
	}

	switch argDriver {
	case "sqlite", "pgx", "mysql":
	default:
		log.Panic("unknown driver, expected one of sqlite, pgx, mysql")
	}

	db, err := sql.Open(argDriver, argDSN)
	if err != nil {
		log.Panic(err)
	}
	defer db.Close()

	if err := createTable(db, argDriver, argTable); err != nil {
		log.Panic(err)
	}

	seedRun := ulid.Make().String()
	rows := generateRows(seedRun, argTotalRows)

	if err := insertBatches(db, argDriver, argTable, rows); err != nil {
		log.Panic(err)
	}

	log.Printf("seeded %d rows into table %s (seed run %s)", len(rows), argTable, seedRun)
}

func createTable(db *sql.DB, driver, table string) error {
	defer timeTrack(time.Now(), "createTable")

	var ddl string
	switch driver {
	case "pgx":
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id BIGINT NOT NULL, account TEXT NOT NULL, amount DOUBLE PRECISION NOT NULL, settled BOOLEAN NOT NULL, batch TEXT NOT NULL)`, table)
	case "mysql":
		ddl = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id BIGINT NOT NULL, account VARCHAR(64) NOT NULL, amount DOUBLE NOT NULL, settled TINYINT(1) NOT NULL, batch VARCHAR(26) NOT NULL)", table)
	default:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id INTEGER NOT NULL, account TEXT NOT NULL, amount REAL NOT NULL, settled BOOLEAN NOT NULL, batch TEXT NOT NULL)`, table)
	}

	_, err := db.Exec(ddl)
	return err
}

func generateRows(seedRun string, total int) []eventRow {
	defer timeTrack(time.Now(), "generateRows")

	rows := make([]eventRow, 0, total)
	for i := 0; i < total; i++ {
		rows = append(rows, eventRow{
			ID:      int64(i + 1),
			Account: fmt.Sprintf("account:%d", i%97),
			Amount:  float64(rand.Intn(1_000_000)) / 100,
			Settled: i%3 == 0,
			Batch:   seedRun,
		})
	}
	return rows
}

func insertBatches(db *sql.DB, driver, table string, rows []eventRow) error {
	defer timeTrack(time.Now(), "insertBatches")

	stbl := sq.StatementBuilder.RunWith(db)
	if driver == "pgx" {
		stbl = stbl.PlaceholderFormat(sq.Dollar)
	}

	g, _ := errgroup.WithContext(context.Background())
	limit := 4
	if driver == "sqlite" {
		// A single writer avoids SQLITE_BUSY on the file lock.
		limit = 1
	}
	g.SetLimit(limit)

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		g.Go(func() error {
			insert := stbl.Insert(table).Columns("id", "account", "amount", "settled", "batch")
			for _, r := range batch {
				insert = insert.Values(r.ID, r.Account, r.Amount, r.Settled, r.Batch)
			}
			_, err := insert.Exec()
			return err
		})
	}

	return g.Wait()
}

func timeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	log.Printf("%s took %s", name, elapsed)
}
