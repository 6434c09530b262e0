// Command minikv runs the key-value server: parse flags, wire a keyspace
// store to the command dispatcher, and hand both to the epoll reactor.
// Flag and startup-logging style follows server/server.go.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/minikv/minikv/internal/audit"
	"github.com/minikv/minikv/internal/command"
	"github.com/minikv/minikv/internal/hashtable"
	"github.com/minikv/minikv/internal/keyspace"
	"github.com/minikv/minikv/internal/reactor"
	"github.com/minikv/minikv/internal/wire"
)

func main() {
	addr := flag.String("addr", ":1234", "Where to listen for client connections")
	maxMsg := flag.Uint("max-msg", wire.DefaultMaxMsg, "Largest request payload or reply body, in bytes")
	rehashWork := flag.Int("rehash-work", hashtable.DefaultRehashWork, "Bounded amount of migration work performed per hash map operation while resizing")
	auditPath := flag.String("audit-log", "", "Path to a JSON audit log of mutating commands (rotated automatically); disabled if empty")

	flag.Parse()

	var auditLog *audit.Logger
	if *auditPath != "" {
		auditLog = audit.New(*auditPath)
		defer auditLog.Close()
		log.Printf("Auditing mutating commands to %q", *auditPath)
	}

	store := keyspace.New(hashtable.WithRehashWork(*rehashWork))
	dispatch := command.Dispatch(store, auditLog)

	r, err := reactor.New(*addr, uint32(*maxMsg), dispatch)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	log.Printf("Serving minikv on %q", *addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
	log.Print("Shutting down")
}
