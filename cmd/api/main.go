// Command api serves the escrow market HTTP API and runs the payout and
// reconciliation workers.
package main

import (
	"log"

	"github.com/ayo6706/escrow-market/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("escrow-market: %v", err)
	}
}
