package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// NotionService is the subset of the Notion API the sync uses.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// ActionLister reads persisted actions for one subject.
type ActionLister interface {
	ListActions(ctx context.Context, subjectID string, filter domain.ActionFilter) ([]domain.PersistedAction, error)
}
