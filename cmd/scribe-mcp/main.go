// Command scribe-mcp serves handed-off dictation sessions to MCP clients over
// stdio.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/scribe-notes/scribe/internal/config"
	"github.com/scribe-notes/scribe/internal/db"
	"github.com/scribe-notes/scribe/internal/log"
	"github.com/scribe-notes/scribe/internal/mcpserver"
)

var version = "dev"

func main() {
	configFlag := flag.String("config", "", "YAML configuration file")
	dbFlag := flag.String("db", "", "SQLite database (overrides config)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location)")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	path := cfg.Handoff.Database
	if *dbFlag != "" {
		path = *dbFlag
	}
	if path == "" {
		path = db.DefaultDBPath()
	}

	// stdout carries the protocol; diagnostics go to the log file.
	if logPath, err := log.ResolveDir(*logPathFlag); err == nil {
		log.SetDir(logPath)
		if err := log.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
		}
	}
	defer log.Close()

	store, err := db.Open(path)
	if err != nil {
		log.Errorf("open store: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	log.Info("scribe-mcp serving " + path)
	if err := server.ServeStdio(mcpserver.New(store, version)); err != nil {
		log.Errorf("serve: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
