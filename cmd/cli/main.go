package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-ledger/internal/export"
	"github.com/dvloznov/sms-ledger/internal/ingest"
	"github.com/dvloznov/sms-ledger/internal/logger"
	"github.com/dvloznov/sms-ledger/internal/notionsync"
	"github.com/dvloznov/sms-ledger/internal/settings"
	"github.com/dvloznov/sms-ledger/internal/sms"
	"github.com/dvloznov/sms-ledger/internal/store"
	"github.com/dvloznov/sms-ledger/internal/store/postgres"
)

func main() {
	log := logger.New("cli")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(log)
	case "export":
		runExport(log)
	case "sync-notion":
		runSyncNotion(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("SMS Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest       Parse and store SMS messages from a file (sender|body per line)")
	fmt.Println("  export       Export the ledger as CSV, optionally uploading to GCS")
	fmt.Println("  sync-notion  Mirror the ledger into a Notion database")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openStore connects to the configured postgres database. The CLI always
// needs durable storage; an in-memory store would vanish with the process.
func openStore(ctx context.Context, log zerolog.Logger, databaseURL string) store.TransactionStore {
	if databaseURL == "" {
		log.Fatal().Msg("Error: -database-url is required (or set DATABASE_URL)")
	}
	st, err := postgres.New(ctx, databaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	return st
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "-", "Input file of sender|body lines, or - for stdin")
	databaseURL := fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var in io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("Failed to open input")
		}
		defer f.Close()
		in = f
	}

	msgs, err := readMessages(in)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read messages")
	}
	if len(msgs) == 0 {
		log.Fatal().Msg("No messages to ingest")
	}

	st := openStore(ctx, log, *databaseURL)
	defer st.Close()

	cfg, err := settings.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid settings")
	}

	coordinator := ingest.New(log, sms.NewParser(log), st, nil, cfg)
	results := coordinator.ProcessBatch(ctx, msgs)

	counts := make(map[ingest.Outcome]int)
	for _, res := range results {
		counts[res.Outcome]++
	}

	fmt.Printf("Processed %d messages: %d persisted, %d dropped, %d failed\n",
		len(results),
		counts[ingest.OutcomePersisted],
		counts[ingest.OutcomeDroppedSender]+counts[ingest.OutcomeDroppedContent]+
			counts[ingest.OutcomeDroppedParse]+counts[ingest.OutcomeDroppedTimeout],
		counts[ingest.OutcomeFailed])
}

// readMessages parses sender|body lines. Literal "\n" in the body stands
// for a newline, since real bank SMS bodies span several lines.
func readMessages(r io.Reader) ([]ingest.Message, error) {
	var msgs []ingest.Message

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sender, body, ok := strings.Cut(line, "|")
		if !ok {
			return nil, fmt.Errorf("malformed line %q: want sender|body", line)
		}
		msgs = append(msgs, ingest.Message{
			Sender: strings.TrimSpace(sender),
			Body:   strings.ReplaceAll(body, `\n`, "\n"),
		})
	}
	return msgs, scanner.Err()
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "-", "Output file, or - for stdout")
	bucket := fs.String("bucket", "", "GCS bucket for a backup upload (optional)")
	databaseURL := fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st := openStore(ctx, log, *databaseURL)
	defer st.Close()

	txs, err := st.List(ctx, store.Query{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query transactions")
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Str("file", *out).Msg("Failed to create output")
		}
		defer f.Close()
		w = f
	}

	if err := export.WriteCSV(w, txs); err != nil {
		log.Fatal().Err(err).Msg("Failed to write CSV")
	}

	if *bucket != "" {
		object, err := export.Backup(ctx, export.NewGCSUploader(), *bucket, txs, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("Backup upload failed")
		}
		fmt.Fprintf(os.Stderr, "Uploaded backup to gs://%s/%s\n", *bucket, object)
	}
}

func runSyncNotion(log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	startDateStr := fs.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := fs.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	notionToken := fs.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token")
	notionDBID := fs.String("notion-db-id", "", "Notion database ID (required)")
	dryRun := fs.Bool("dry-run", false, "Preview changes without syncing")
	databaseURL := fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	fs.Parse(os.Args[2:])

	if *startDateStr == "" || *endDateStr == "" || *notionToken == "" || *notionDBID == "" {
		log.Fatal().Msg("Usage: cli sync-notion -start-date DATE -end-date DATE -notion-token TOKEN -notion-db-id ID")
	}

	from, err := civil.ParseDate(*startDateStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -start-date")
	}
	to, err := civil.ParseDate(*endDateStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -end-date")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st := openStore(ctx, log, *databaseURL)
	defer st.Close()

	stats, err := notionsync.SyncLedger(ctx, st, notionsync.NewNotionClient(*notionToken), *notionDBID, from, to, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync complete: %d created, %d archived, %d unchanged\n",
		stats.Created, stats.Deleted, stats.Skipped)
}
