package notionsync

import (
	"strconv"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

// ledgerIDProperty is the title property used to match Notion pages back to
// store ids. Sync falls apart if this name drifts from the database schema.
const ledgerIDProperty = "Ledger ID"

// TransactionToNotionProperties converts a ledger transaction to Notion
// properties. The Ledger ID title carries the store id so repeated syncs
// can find the page again.
func TransactionToNotionProperties(tx *domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		ledgerIDProperty: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: strconv.FormatInt(tx.ID, 10),
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(
						tx.Date.Year,
						tx.Date.Month,
						tx.Date.Day,
						tx.Time.Hour, tx.Time.Minute, tx.Time.Second, 0, time.UTC,
					))
					return &d
				}(),
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Amount.InexactFloat64(),
		},
		"Type": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(tx.Direction),
			},
		},
		"Entry Method": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(tx.EntryMethod),
			},
		},
	}

	if tx.CounterpartyName != "" {
		props["Receiver/Sender"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.CounterpartyName,
					},
				},
			},
		}
	}

	if tx.Institution != "" {
		props["Bank"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Institution,
			},
		}
	}

	if tx.AccountNumber != "" {
		props["Account"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.AccountNumber,
					},
				},
			},
		}
	}

	if tx.Reference != "" {
		props["UPI Reference"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.Reference,
					},
				},
			},
		}
	}

	if tx.IsTagged {
		props["Tag"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.UserTag,
			},
		}
	}

	if !tx.CreatedAt.IsZero() {
		props["Captured At"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: (*notionapi.Date)(&tx.CreatedAt),
			},
		}
	}

	return props
}

// extractLedgerID reads the store id back out of a Notion page. Returns
// zero if the page has no parseable Ledger ID title.
func extractLedgerID(page notionapi.Page) int64 {
	prop, ok := page.Properties[ledgerIDProperty]
	if !ok {
		return 0
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return 0
	}
	id, err := strconv.ParseInt(title.Title[0].PlainText, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
