package dialogue

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

func TestCoerceExtraction_Fields(t *testing.T) {
	raw := map[string]interface{}{
		"item":              "  Coxinha ",
		"amount":            8.5,
		"category":          "Compras",
		"paymentMethod":     "Debit",
		"recurrence":        "Único",
		"purchaseLocation":  "loja física",
		"missingInfoPrompt": "",
		"cancelRequested":   false,
		"userId":            "should be ignored",
	}

	ex := CoerceExtraction(raw)

	if ex.Item == nil || *ex.Item != "Coxinha" {
		t.Errorf("item = %v, want Coxinha", ex.Item)
	}
	if ex.Amount == nil || !ex.Amount.Equal(decimal.RequireFromString("8.5")) {
		t.Errorf("amount = %v, want 8.5", ex.Amount)
	}
	if ex.Category == nil || *ex.Category != domain.CategoryPurchase {
		t.Errorf("category = %v, want %s", ex.Category, domain.CategoryPurchase)
	}
	if ex.Recurrence == nil || *ex.Recurrence != domain.RecurrenceOneTime {
		t.Errorf("recurrence = %v, want %s", ex.Recurrence, domain.RecurrenceOneTime)
	}
	if ex.PurchaseLocation == nil || *ex.PurchaseLocation != domain.LocationPhysicalStore {
		t.Errorf("purchase location = %v, want %s", ex.PurchaseLocation, domain.LocationPhysicalStore)
	}
	if ex.MissingInfoPrompt != "" || ex.CancelRequested {
		t.Errorf("unexpected signals: %+v", ex)
	}
}

func TestCoerceExtraction_NoiseBecomesUnset(t *testing.T) {
	raw := map[string]interface{}{
		"item":             42,
		"amount":           "eight reais",
		"category":         nil,
		"paymentMethod":    "",
		"recurrence":       "null",
		"purchaseLocation": "on the moon",
		"cancelRequested":  "maybe",
	}

	ex := CoerceExtraction(raw)
	if !ex.Empty() {
		t.Errorf("expected empty extraction, got %+v", ex)
	}
}

func TestCoerceExtraction_Amounts(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"float", 8.5, "8.5"},
		{"int", 12, "12"},
		{"json number", json.Number("19.90"), "19.9"},
		{"comma decimal", "8,50", "8.5"},
		{"currency prefix", "R$ 1.234,56", "1234.56"},
		{"dollar", "$12", "12"},
		{"zero", 0.0, ""},
		{"negative", -3.0, ""},
		{"bool", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := CoerceExtraction(map[string]interface{}{"amount": tt.value})
			if tt.want == "" {
				if ex.Amount != nil {
					t.Errorf("amount = %s, want unset", ex.Amount)
				}
				return
			}
			if ex.Amount == nil {
				t.Fatalf("amount unset, want %s", tt.want)
			}
			if !ex.Amount.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("amount = %s, want %s", ex.Amount, tt.want)
			}
		})
	}
}

func TestCoerceExtraction_Locations(t *testing.T) {
	tests := map[string]string{
		"Online":         domain.LocationOnline,
		"internet":       domain.LocationOnline,
		"PhysicalStore":  domain.LocationPhysicalStore,
		"physical store": domain.LocationPhysicalStore,
		"Loja Fisica":    domain.LocationPhysicalStore,
		"in-store":       domain.LocationPhysicalStore,
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			ex := CoerceExtraction(map[string]interface{}{"purchase_location": in})
			if ex.PurchaseLocation == nil || *ex.PurchaseLocation != want {
				t.Errorf("location = %v, want %s", ex.PurchaseLocation, want)
			}
		})
	}
}

func TestCoerceExtraction_OnlinePurchaseCategory(t *testing.T) {
	ex := CoerceExtraction(map[string]interface{}{"category": "Online Purchase"})
	if ex.Category == nil || *ex.Category != domain.CategoryPurchase {
		t.Errorf("category = %v, want %s", ex.Category, domain.CategoryPurchase)
	}
	if ex.PurchaseLocation == nil || *ex.PurchaseLocation != domain.LocationOnline {
		t.Errorf("location = %v, want %s", ex.PurchaseLocation, domain.LocationOnline)
	}

	ex = CoerceExtraction(map[string]interface{}{"category": "Compras Online", "purchaseLocation": "PhysicalStore"})
	if *ex.PurchaseLocation != domain.LocationPhysicalStore {
		t.Errorf("explicit location overridden: %v", *ex.PurchaseLocation)
	}
}

func TestCoerceExtraction_Signals(t *testing.T) {
	ex := CoerceExtraction(map[string]interface{}{
		"cancel_requested":    "true",
		"missing_info_prompt": " Which card? ",
	})
	if !ex.CancelRequested {
		t.Error("expected cancel to be requested")
	}
	if ex.MissingInfoPrompt != "Which card?" {
		t.Errorf("missing prompt = %q", ex.MissingInfoPrompt)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"8.50", "8.5", true},
		{"8,50", "8.5", true},
		{"R$8,50", "8.5", true},
		{"$12", "12", true},
		{"1,000", "1000", true},
		{"1,234.56", "1234.56", true},
		{"$1,234.56", "1234.56", true},
		{"1.234,56", "1234.56", true},
		{"R$ 1.234,56", "1234.56", true},
		{"1,234,567", "1234567", true},
		{",5", "0.5", true},
		{"", "", false},
		{"abc", "", false},
		{"1,2345", "", false},
		{"1,234.567", "", false},
		{"1.234.56", "", false},
		{"12,34,567", "", false},
		{"0,500", "", false},
		{"-5", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v (got %s)", tt.in, ok, tt.wantOK, got)
			}
			if ok && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerceExtraction_ThousandsSeparator(t *testing.T) {
	ex := CoerceExtraction(map[string]interface{}{"amount": "$1,234.56"})
	if ex.Amount == nil || !ex.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("amount = %v, want 1234.56", ex.Amount)
	}

	ex = CoerceExtraction(map[string]interface{}{"amount": "1,2345"})
	if ex.Amount != nil {
		t.Errorf("amount = %s, want unset for malformed input", ex.Amount)
	}
}
