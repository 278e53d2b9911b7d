package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Recomputes balance and total_earned from the transaction log. Run after
// restoring a backup or repairing ledger rows by hand; the ledger is the
// source of truth, account columns are derived.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	result, err := db.Exec(`
		UPDATE accounts a
		SET balance = COALESCE(t.total, 0),
		    total_earned = COALESCE(t.earned, 0)
		FROM (
			SELECT account_id,
			       SUM(amount)                              AS total,
			       SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END) AS earned
			FROM transactions
			GROUP BY account_id
		) t
		WHERE a.id = t.account_id
	`)
	if err != nil {
		log.Fatalf("Failed to backfill totals: %v", err)
	}

	rows, _ := result.RowsAffected()
	log.Printf("Backfilled %d accounts", rows)
}
