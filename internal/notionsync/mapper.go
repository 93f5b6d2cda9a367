package notionsync

import (
	"github.com/jomei/notionapi"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Property names of the Notion expenses database.
const (
	PropItem             = "Item"
	PropExpenseID        = "Expense ID"
	PropDate             = "Date"
	PropAmount           = "Amount"
	PropCategory         = "Category"
	PropPaymentMethod    = "Payment Method"
	PropPurchaseLocation = "Purchase Location"
	PropRecurrence       = "Recurrence"
	PropStatus           = "Status"
	PropLedger           = "Ledger"
)

// ExpenseToNotionProperties converts a committed expense to Notion properties.
// The category select holds the display category.
func ExpenseToNotionProperties(rec domain.FinalizedExpense, ledgerID string) notionapi.Properties {
	date := notionapi.Date(rec.Timestamp)
	amount, _ := rec.Amount.Float64()

	props := notionapi.Properties{
		PropItem: notionapi.TitleProperty{
			Title: richText(rec.Item),
		},
		PropExpenseID: notionapi.RichTextProperty{
			RichText: richText(rec.ID),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
	}

	selects := map[string]string{
		PropCategory:         rec.DisplayCategory,
		PropPaymentMethod:    rec.PaymentMethod,
		PropPurchaseLocation: rec.PurchaseLocation,
		PropRecurrence:       rec.Recurrence,
		PropStatus:           rec.StatusTag,
	}
	for name, value := range selects {
		if value != "" {
			props[name] = notionapi.SelectProperty{Select: notionapi.Option{Name: value}}
		}
	}

	if ledgerID != "" {
		props[PropLedger] = notionapi.RichTextProperty{RichText: richText(ledgerID)}
	}

	return props
}

// ExpenseIDFromPage returns the expense ID stored on a page, or "".
func ExpenseIDFromPage(page notionapi.Page) string {
	prop, ok := page.Properties[PropExpenseID]
	if !ok {
		return ""
	}

	var texts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		texts = p.RichText
	case notionapi.RichTextProperty:
		texts = p.RichText
	}
	if len(texts) == 0 {
		return ""
	}
	if texts[0].PlainText != "" {
		return texts[0].PlainText
	}
	if texts[0].Text != nil {
		return texts[0].Text.Content
	}
	return ""
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}
