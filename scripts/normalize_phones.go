// One-off backfill: normalizes every invitee phone number already in the
// database to E.164 so identity matching behaves for rows created before
// normalization happened at the edge.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inviteq/inviteq/internal/utils"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./inviteq.db"
	}
	region := os.Getenv("DEFAULT_PHONE_REGION")
	if region == "" {
		region = "US"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT id, phone FROM invitees WHERE phone IS NOT NULL AND phone != ''")
	if err != nil {
		log.Fatalf("Failed to query invitees: %v", err)
	}
	defer rows.Close()

	type invitee struct {
		id    string
		phone string
	}

	var invitees []invitee
	for rows.Next() {
		var inv invitee
		if err := rows.Scan(&inv.id, &inv.phone); err != nil {
			log.Printf("Failed to scan row: %v", err)
			continue
		}
		invitees = append(invitees, inv)
	}

	fmt.Printf("Found %d invitees to process\n", len(invitees))

	updated := 0
	failed := 0
	for _, inv := range invitees {
		normalized, err := utils.NormalizePhoneNumber(inv.phone, region)
		if err != nil {
			log.Printf("Failed to normalize phone %q (ID: %s): %v", inv.phone, inv.id, err)
			failed++
			continue
		}

		// Only update if the phone number changed
		if normalized != inv.phone {
			_, err := db.Exec("UPDATE invitees SET phone = $1 WHERE id = $2", normalized, inv.id)
			if err != nil {
				log.Printf("Failed to update phone for ID %s: %v", inv.id, err)
				failed++
				continue
			}
			fmt.Printf("Updated ID %s: %q -> %q\n", inv.id, inv.phone, normalized)
			updated++
		}
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Total: %d\n", len(invitees))
	fmt.Printf("  Updated: %d\n", updated)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Printf("  Unchanged: %d\n", len(invitees)-updated-failed)
}
