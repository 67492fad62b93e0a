// Package dblock serializes test binaries that share one Postgres database.
// go test runs packages in parallel processes, so the lock is a loopback TCP
// port: whichever process holds the listener owns the database.
package dblock

import (
	"hash/fnv"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	basePort = 45000
	portSpan = 1000
	maxWait  = 2 * time.Minute
)

// Acquire blocks until the lock for DATABASE_URL is free and returns its
// release function. Test runs against different databases do not contend.
// After maxWait the lock is skipped rather than hanging the run.
func Acquire() func() {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port(os.Getenv("DATABASE_URL"))))
	deadline := time.Now().Add(maxWait)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		if time.Now().After(deadline) {
			return func() {}
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func port(dsn string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(dsn))
	return basePort + int(h.Sum32()%portSpan)
}
