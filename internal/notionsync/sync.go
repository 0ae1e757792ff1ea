// Package notionsync mirrors the ledger into a Notion database. The store
// id travels on each page as the Ledger ID title, which makes repeated
// syncs idempotent: existing pages are skipped, pages for deleted
// transactions are archived.
package notionsync

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	"github.com/dvloznov/sms-ledger/internal/logger"
	"github.com/dvloznov/sms-ledger/internal/store"
)

// BatchSize is the number of transactions handled per batch, matching the
// Notion query page size.
const BatchSize = 100

// Stats summarizes one sync run.
type Stats struct {
	Created int
	Deleted int
	Skipped int
}

// SyncLedger pushes transactions in [from, to] to the Notion database.
// Stale pages, meaning pages whose ledger id no longer exists in the given
// range, are archived first. With dryRun set, it only logs what it would do.
func SyncLedger(ctx context.Context, st store.TransactionStore, notionClient NotionService, notionDBID string, from, to civil.Date, dryRun bool) (Stats, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Bool("dry_run", dryRun).
		Msg("Starting ledger sync to Notion")

	txs, err := st.List(ctx, store.Query{From: &from, To: &to})
	if err != nil {
		return Stats{}, fmt.Errorf("query transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(txs)).Msg("Retrieved transactions from store")

	validIDs := make(map[int64]bool, len(txs))
	for _, tx := range txs {
		validIDs[tx.ID] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return Stats{}, fmt.Errorf("query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existingIDs := make(map[int64]bool)
	for _, page := range pages {
		if id := extractLedgerID(page); id != 0 {
			existingIDs[id] = true
		}
	}

	var stats Stats

	// Archive pages whose transaction is gone or has no usable id.
	for _, page := range pages {
		id := extractLedgerID(page)
		if id != 0 && validIDs[id] {
			continue
		}
		if dryRun {
			log.Info().
				Int64("ledger_id", id).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			stats.Deleted++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Int64("ledger_id", id).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			continue
		}
		log.Info().
			Int64("ledger_id", id).
			Str("page_id", string(page.ID)).
			Msg("Archived stale Notion page")
		stats.Deleted++
	}

	for i := 0; i < len(txs); i += BatchSize {
		end := i + BatchSize
		if end > len(txs) {
			end = len(txs)
		}

		for _, tx := range txs[i:end] {
			if existingIDs[tx.ID] {
				stats.Skipped++
				continue
			}

			if dryRun {
				log.Info().
					Int64("ledger_id", tx.ID).
					Msg("[DRY RUN] Would create Notion page")
				stats.Created++
				continue
			}

			page, err := notionClient.CreatePage(ctx, notionDBID, TransactionToNotionProperties(tx))
			if err != nil {
				log.Warn().
					Err(err).
					Int64("ledger_id", tx.ID).
					Msg("Failed to create Notion page")
				continue
			}
			log.Info().
				Int64("ledger_id", tx.ID).
				Str("page_id", string(page.ID)).
				Msg("Created Notion page")
			stats.Created++
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("deleted", stats.Deleted).
		Int("skipped", stats.Skipped).
		Int("total", len(txs)).
		Msg("Ledger sync completed")

	return stats, nil
}

// queryAllNotionPages pages through the whole database.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: BatchSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
