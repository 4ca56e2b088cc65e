// Package notionsync mirrors persisted spending actions into a Notion
// database so they can be triaged there.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

// pageSize is the Notion maximum for database queries.
const pageSize = 100

// Stats counts what a sync did, or would do in dry-run mode.
type Stats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// SyncActions mirrors a subject's actions into the database keyed by Action
// ID. New actions become pages; pages whose Resolved checkbox disagrees with
// the store are updated. Per-page failures are logged and counted; only
// failures to read either side abort the sync.
func SyncActions(ctx context.Context, repo ActionLister, notionClient NotionService, notionDBID, subjectID string, dryRun bool) (*Stats, error) {
	log := logger.FromContext(ctx).With().
		Str("subject_id", subjectID).
		Bool("dry_run", dryRun).
		Logger()

	actions, err := repo.ListActions(ctx, subjectID, domain.ActionFilter{})
	if err != nil {
		return nil, fmt.Errorf("SyncActions: listing actions: %w", err)
	}
	log.Info().Int("action_count", len(actions)).Msg("Retrieved actions from store")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("SyncActions: %w", err)
	}

	existing := make(map[string]pageState, len(pages))
	for _, page := range pages {
		if id := extractActionID(page); id != "" {
			existing[id] = pageState{pageID: string(page.ID), resolved: extractResolved(page)}
		}
	}
	log.Info().Int("notion_page_count", len(existing)).Msg("Retrieved existing Notion pages")

	stats := &Stats{}
	for _, a := range actions {
		alog := log.With().Str("action_id", a.ActionID).Logger()
		state, found := existing[a.ActionID]

		switch {
		case found && state.resolved == a.Resolved:
			stats.Unchanged++

		case found:
			if dryRun {
				alog.Info().Str("page_id", state.pageID).Msg("[DRY RUN] Would update resolved state")
				stats.Updated++
				continue
			}
			if _, err := notionClient.UpdatePage(ctx, state.pageID, ResolutionProperties(a)); err != nil {
				alog.Warn().Err(err).Str("page_id", state.pageID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			alog.Debug().Str("page_id", state.pageID).Msg("Updated Notion page")
			stats.Updated++

		default:
			if dryRun {
				alog.Info().Msg("[DRY RUN] Would create Notion page")
				stats.Created++
				continue
			}
			page, err := notionClient.CreatePage(ctx, notionDBID, ActionToNotionProperties(a))
			if err != nil {
				alog.Warn().Err(err).Msg("Failed to create Notion page")
				stats.Failed++
				continue
			}
			alog.Debug().Str("page_id", string(page.ID)).Msg("Created Notion page")
			stats.Created++
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("unchanged", stats.Unchanged).
		Int("failed", stats.Failed).
		Msg("Action sync completed")
	return stats, nil
}

// queryAllNotionPages follows the query cursor until the database is drained.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: pageSize}
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
