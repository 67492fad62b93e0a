package service

import (
	"flag"
	"os"
	"testing"

	"github.com/ayo6706/escrow-market/internal/testutil/dblock"
	"go.uber.org/zap"
)

// TestMain holds the shared database lock for the Postgres tests in this
// package. Short runs only use the in-memory store and skip the lock.
func TestMain(m *testing.M) {
	flag.Parse()
	zap.ReplaceGlobals(zap.NewNop())

	if testing.Short() {
		os.Exit(m.Run())
	}
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}
