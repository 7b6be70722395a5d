package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"arena-server/arena"
)

const shutdownGrace = 5 * time.Second

// defaultClientDir prefers ../client next to the binary, then ../client
// relative to the working directory.
func defaultClientDir() string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Join(filepath.Dir(exe), "..", "client")
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	return "../client"
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	clientDir := flag.String("client", "", "Path to client directory (default: ../client)")
	dbPath := flag.String("db", "arena.db", "SQLite database path, empty disables accounts and stats")
	arenaPath := flag.String("arena", "", "YAML arena tuning file (default: built-in tuning)")
	flag.Parse()

	if *clientDir == "" {
		*clientDir = defaultClientDir()
	}

	cfg := arena.DefaultConfig()
	if *arenaPath != "" {
		var err error
		if cfg, err = arena.LoadConfig(*arenaPath); err != nil {
			log.Fatalf("arena config: %v", err)
		}
		log.Printf("Loaded arena tuning from %s", *arenaPath)
	}

	var db *DB
	if *dbPath != "" {
		var err error
		if db, err = OpenDB(*dbPath); err != nil {
			log.Fatalf("database: %v", err)
		}
		log.Printf("Database opened at %s", *dbPath)
	}
	analytics := NewAnalytics(db)

	hub := NewHub(cfg, db, analytics)
	go hub.Run()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: *addr, Handler: SetupRoutes(hub, *clientDir)}
	go func() {
		log.Printf("Server starting on %s, client files from %s", *addr, *clientDir)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	// hijacked WebSocket connections are not waited on
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	cancel()

	// sessions record their runs before the writer and database go away
	hub.Shutdown()
	analytics.Stop()
	if db != nil {
		if err := db.Close(); err != nil {
			log.Printf("close database: %v", err)
		}
	}
}
