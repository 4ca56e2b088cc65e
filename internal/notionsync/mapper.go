package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// Property names of the actions database.
const (
	PropActionID   = "Action ID"
	PropSubject    = "Subject"
	PropKind       = "Kind"
	PropTrigger    = "Trigger"
	PropCategory   = "Category"
	PropMessage    = "Message"
	PropReasoning  = "Reasoning"
	PropAmount     = "Amount"
	PropResolved   = "Resolved"
	PropCreated    = "Created"
	PropResolvedAt = "Resolved At"
)

// maxRichTextLen is Notion's limit for a single rich text object.
const maxRichTextLen = 2000

func richText(s string) []notionapi.RichText {
	if len(s) > maxRichTextLen {
		s = s[:maxRichTextLen]
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t.UTC())
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &d},
	}
}

// ActionToNotionProperties converts a persisted action to page properties.
// Optional fields are omitted when empty so an update never blanks them.
func ActionToNotionProperties(a domain.PersistedAction) notionapi.Properties {
	props := notionapi.Properties{
		PropActionID: notionapi.TitleProperty{Title: richText(a.ActionID)},
		PropSubject:  notionapi.RichTextProperty{RichText: richText(a.SubjectID)},
		PropKind:     notionapi.SelectProperty{Select: notionapi.Option{Name: string(a.Kind)}},
		PropMessage:  notionapi.RichTextProperty{RichText: richText(a.Message)},
		PropResolved: notionapi.CheckboxProperty{Checkbox: a.Resolved},
		PropCreated:  dateProperty(a.CreatedAt),
	}

	if a.Trigger != "" {
		props[PropTrigger] = notionapi.SelectProperty{Select: notionapi.Option{Name: string(a.Trigger)}}
	}
	if a.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: a.Category}}
	}
	if a.Reasoning != "" {
		props[PropReasoning] = notionapi.RichTextProperty{RichText: richText(a.Reasoning)}
	}
	if a.Amount != nil {
		props[PropAmount] = notionapi.NumberProperty{Number: *a.Amount}
	}
	if a.ResolvedAt != nil {
		props[PropResolvedAt] = dateProperty(*a.ResolvedAt)
	}
	return props
}

// ResolutionProperties carries only the fields that change when an action is
// resolved.
func ResolutionProperties(a domain.PersistedAction) notionapi.Properties {
	props := notionapi.Properties{
		PropResolved: notionapi.CheckboxProperty{Checkbox: a.Resolved},
	}
	if a.ResolvedAt != nil {
		props[PropResolvedAt] = dateProperty(*a.ResolvedAt)
	}
	return props
}

// pageState is what the sync needs to know about an existing page.
type pageState struct {
	pageID   string
	resolved bool
}

// extractActionID returns the page's Action ID title, or "" if missing.
func extractActionID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropActionID]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok && len(title.Title) > 0 {
			if title.Title[0].PlainText != "" {
				return title.Title[0].PlainText
			}
			if title.Title[0].Text != nil {
				return title.Title[0].Text.Content
			}
		}
	}
	return ""
}

func extractResolved(page notionapi.Page) bool {
	if prop, ok := page.Properties[PropResolved]; ok {
		if cb, ok := prop.(*notionapi.CheckboxProperty); ok {
			return cb.Checkbox
		}
	}
	return false
}
