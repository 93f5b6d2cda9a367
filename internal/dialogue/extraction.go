package dialogue

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Extraction is the typed form of one extractor guess. Nil slots carry no new information.
type Extraction struct {
	Item             *string
	Amount           *decimal.Decimal
	Category         *string
	PaymentMethod    *string
	Recurrence       *string
	PurchaseLocation *string

	// MissingInfoPrompt is the extractor's own follow-up wording, if any.
	MissingInfoPrompt string
	// CancelRequested is set when the user asked to abandon the expense.
	CancelRequested bool
}

// extractionKeys maps accepted JSON keys to slots. Keys not listed here are ignored.
var extractionKeys = map[string]string{
	"item":                "item",
	"amount":              "amount",
	"category":            "category",
	"paymentMethod":       "paymentMethod",
	"payment_method":      "paymentMethod",
	"recurrence":          "recurrence",
	"purchaseLocation":    "purchaseLocation",
	"purchase_location":   "purchaseLocation",
	"missingInfoPrompt":   "missingInfoPrompt",
	"missing_info_prompt": "missingInfoPrompt",
	"cancelRequested":     "cancelRequested",
	"cancel_requested":    "cancelRequested",
}

var locationAliases = map[string]string{
	"online":        domain.LocationOnline,
	"internet":      domain.LocationOnline,
	"web":           domain.LocationOnline,
	"site":          domain.LocationOnline,
	"app":           domain.LocationOnline,
	"physicalstore": domain.LocationPhysicalStore,
	"store":         domain.LocationPhysicalStore,
	"instore":       domain.LocationPhysicalStore,
	"inperson":      domain.LocationPhysicalStore,
	"loja":          domain.LocationPhysicalStore,
	"lojafisica":    domain.LocationPhysicalStore,
	"lojafísica":    domain.LocationPhysicalStore,
}

var categoryAliases = map[string]string{
	"purchase":  domain.CategoryPurchase,
	"purchases": domain.CategoryPurchase,
	"shopping":  domain.CategoryPurchase,
	"compra":    domain.CategoryPurchase,
	"compras":   domain.CategoryPurchase,
}

var onlineCategoryAliases = map[string]bool{
	"onlinepurchase": true,
	"comprasonline":  true,
}

var recurrenceAliases = map[string]string{
	"onetime": domain.RecurrenceOneTime,
	"once":    domain.RecurrenceOneTime,
	"single":  domain.RecurrenceOneTime,
	"único":   domain.RecurrenceOneTime,
	"unico":   domain.RecurrenceOneTime,
}

// CoerceExtraction converts an untrusted JSON object into an Extraction.
// Values of the wrong type, empty strings and non-positive amounts become unset.
func CoerceExtraction(raw map[string]interface{}) Extraction {
	var ex Extraction
	for key, value := range raw {
		slot, ok := extractionKeys[key]
		if !ok {
			continue
		}
		switch slot {
		case "item":
			ex.Item = coerceString(value)
		case "amount":
			ex.Amount = coerceAmount(value)
		case "category":
			ex.Category = coerceString(value)
		case "paymentMethod":
			ex.PaymentMethod = coerceString(value)
		case "recurrence":
			ex.Recurrence = coerceRecurrence(value)
		case "purchaseLocation":
			ex.PurchaseLocation = coerceLocation(value)
		case "missingInfoPrompt":
			if s := coerceString(value); s != nil {
				ex.MissingInfoPrompt = *s
			}
		case "cancelRequested":
			ex.CancelRequested = coerceBool(value)
		}
	}

	if ex.Category != nil {
		k := foldKey(*ex.Category)
		if onlineCategoryAliases[k] {
			ex.Category = Ptr(domain.CategoryPurchase)
			if ex.PurchaseLocation == nil {
				ex.PurchaseLocation = Ptr(domain.LocationOnline)
			}
		} else if canonical, ok := categoryAliases[k]; ok {
			ex.Category = Ptr(canonical)
		}
	}

	return ex
}

// Empty reports whether the extraction carries no slot value and no signal.
func (ex Extraction) Empty() bool {
	return ex.Item == nil && ex.Amount == nil && ex.Category == nil &&
		ex.PaymentMethod == nil && ex.Recurrence == nil && ex.PurchaseLocation == nil &&
		ex.MissingInfoPrompt == "" && !ex.CancelRequested
}

func coerceString(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func coerceAmount(v interface{}) *decimal.Decimal {
	var d decimal.Decimal
	switch x := v.(type) {
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case json.Number:
		parsed, err := decimal.NewFromString(x.String())
		if err != nil {
			return nil
		}
		d = parsed
	case string:
		parsed, ok := ParseAmount(x)
		if !ok {
			return nil
		}
		d = parsed
	default:
		return nil
	}
	if !d.IsPositive() {
		return nil
	}
	return &d
}

// ParseAmount parses a spoken or typed money amount such as "8.50", "8,50",
// "1,000", "$1,234.56", "R$ 1.234,56" or "$12".
//
// The last separator is the decimal mark when it is followed by one or two
// digits. A separator followed by exactly three digits is a thousands separator,
// unless the other mark also appears. Anything else is rejected.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")

	whole, frac, group := s, "", byte(0)
	if i := strings.LastIndexAny(s, ".,"); i >= 0 {
		sep, tail := s[i], s[i+1:]
		other := byte(',')
		if sep == ',' {
			other = '.'
		}
		switch {
		case len(tail) == 1 || len(tail) == 2:
			whole, frac, group = s[:i], tail, other
		case len(tail) == 3 && strings.IndexByte(s, other) < 0:
			group = sep
		default:
			return decimal.Decimal{}, false
		}
	}

	whole, ok := ungroup(whole, group)
	if !ok || !allDigits(whole) || !allDigits(frac) || (whole == "" && frac == "") {
		return decimal.Decimal{}, false
	}
	if whole == "" {
		whole = "0"
	}
	if frac != "" {
		whole += "." + frac
	}
	d, err := decimal.NewFromString(whole)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ungroup removes thousands separators, checking that every group after the
// first has exactly three digits.
func ungroup(s string, sep byte) (string, bool) {
	if sep == 0 || strings.IndexByte(s, sep) < 0 {
		return s, true
	}
	groups := strings.Split(s, string(sep))
	if first := groups[0]; first == "" || len(first) > 3 || first[0] == '0' {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func coerceLocation(v interface{}) *string {
	s := coerceString(v)
	if s == nil {
		return nil
	}
	if domain.IsPurchaseLocation(*s) {
		return s
	}
	if canonical, ok := locationAliases[foldKey(*s)]; ok {
		return Ptr(canonical)
	}
	return nil
}

func coerceRecurrence(v interface{}) *string {
	s := coerceString(v)
	if s == nil {
		return nil
	}
	if canonical, ok := recurrenceAliases[foldKey(*s)]; ok {
		return Ptr(canonical)
	}
	return s
}

func coerceBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	}
	return false
}

// foldKey lowercases and strips separators so "Physical Store", "physical-store"
// and "PhysicalStore" compare equal.
func foldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}
