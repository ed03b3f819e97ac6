package pipeline

import (
	"testing"

	"receiptbook/internal"
)

func TestParsePaymentType(t *testing.T) {
	cases := map[string]internal.PaymentType{
		"Reimbursement":  internal.PaymentReimbursement,
		"reimbursment":   internal.PaymentReimbursement,
		"INVOICE":        internal.PaymentInvoice,
		"store receipt":  internal.PaymentStoreReceipt,
		"Store-Receipt":  internal.PaymentStoreReceipt,
		"pcard":          internal.PaymentStoreReceipt,
	}
	for in, want := range cases {
		got, ok := ParsePaymentType(in)
		if !ok || got != want {
			t.Fatalf("ParsePaymentType(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "cash", "zzz"} {
		if got, ok := ParsePaymentType(in); ok {
			t.Fatalf("ParsePaymentType(%q) matched %q", in, got)
		}
	}
}

func TestParseCategory(t *testing.T) {
	cases := map[string]internal.Category{
		"Operational": internal.CategoryOperational,
		"operationl":  internal.CategoryOperational,
		"mc cabe":     internal.CategoryMcCabe,
		"carpentry":   internal.CategoryCarpenter,
		"equipment":   internal.CategoryEquipment,
		"other":       internal.CategoryOther,
	}
	for in, want := range cases {
		got, ok := ParseCategory(in)
		if !ok || got != want {
			t.Fatalf("ParseCategory(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	if got, ok := ParseCategory("groceries"); ok {
		t.Fatalf("unexpected match %q", got)
	}
}
