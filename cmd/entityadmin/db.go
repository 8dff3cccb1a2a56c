package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/persistence/journal"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	domainID := fs.String("domain", "", "domain id (required unless -db)")
	dbPath := fs.String("db", "", "journal db path (optional)")
	entityID := fs.String("entity", "", "entity uuid filter (entity query)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "recent"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*domainID) == "" {
			fmt.Fprintln(os.Stderr, "missing -domain or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "domains", *domainID, "journal.db")
	}
	// Open would create an empty db on a typo'd path.
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "no journal at", path)
		os.Exit(2)
	}

	store, err := journal.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	switch q {
	case "recent":
		rows, err := store.RecentEdits(ctx, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		printRows(rows)

	case "entity":
		id, err := uuid.Parse(strings.TrimSpace(*entityID))
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -entity:", err)
			os.Exit(2)
		}
		rows, err := store.EditsForEntity(ctx, id, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		printRows(rows)

	case "count":
		n, err := store.EditCount(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		printJSON(struct {
			Count int64 `json:"count"`
		}{n})

	case "archives":
		rows, err := store.Archives(ctx, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(struct {
				WrittenUsec uint64 `json:"written_usec"`
				Path        string `json:"path"`
				Entities    int    `json:"entities"`
			}{r.WrittenUsec, r.Path, r.Entities})
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: entityadmin db [-data ./data] [-domain DOMAIN|-db PATH] [-entity UUID] [-limit N] recent|entity|count|archives")
		os.Exit(2)
	}
}

func printRows(rows []journal.Row) {
	for _, r := range rows {
		printJSON(struct {
			Seq          int64  `json:"seq"`
			ReceivedUsec uint64 `json:"received_usec"`
			Op           string `json:"op"`
			SessionID    string `json:"session_id"`
			EntityID     string `json:"entity_id"`
			EntityType   string `json:"entity_type"`
			Flags        uint64 `json:"flags"`
			BlobBytes    int    `json:"blob_bytes"`
		}{r.Seq, r.ReceivedUsec, r.Op, r.SessionID, r.EntityID.String(), r.EntityType, r.Flags, r.BlobBytes})
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
