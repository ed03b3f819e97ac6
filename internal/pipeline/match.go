package pipeline

import (
	"receiptbook/internal"
	"receiptbook/internal/util"
)

const fuzzyThreshold = 0.6

var paymentAliases = map[string]internal.PaymentType{
	"reimburse":    internal.PaymentReimbursement,
	"reimbursed":   internal.PaymentReimbursement,
	"inv":          internal.PaymentInvoice,
	"bill":         internal.PaymentInvoice,
	"receipt":      internal.PaymentStoreReceipt,
	"store":        internal.PaymentStoreReceipt,
	"pcard":        internal.PaymentStoreReceipt,
	"purchasecard": internal.PaymentStoreReceipt,
}

var categoryAliases = map[string]internal.Category{
	"ops":        internal.CategoryOperational,
	"operations": internal.CategoryOperational,
	"carpentry":  internal.CategoryCarpenter,
	"equip":      internal.CategoryEquipment,
	"misc":       internal.CategoryOther,
}

// ParsePaymentType maps free text onto a payment type by exact name,
// known alias, then Dice similarity.
func ParsePaymentType(s string) (internal.PaymentType, bool) {
	names := make([]string, len(internal.PaymentTypes))
	for i, p := range internal.PaymentTypes {
		names[i] = string(p)
	}
	key := util.NormalizeKey(s)
	if p, ok := paymentAliases[key]; ok {
		return p, true
	}
	if i, ok := bestMatch(key, names); ok {
		return internal.PaymentTypes[i], true
	}
	return "", false
}

func ParseCategory(s string) (internal.Category, bool) {
	names := make([]string, len(internal.Categories))
	for i, c := range internal.Categories {
		names[i] = string(c)
	}
	key := util.NormalizeKey(s)
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	if i, ok := bestMatch(key, names); ok {
		return internal.Categories[i], true
	}
	return "", false
}

func bestMatch(key string, names []string) (int, bool) {
	if key == "" {
		return 0, false
	}
	best, bestScore := -1, 0.0
	for i, name := range names {
		candidate := util.NormalizeKey(name)
		if candidate == key {
			return i, true
		}
		if score := util.DiceCoefficient(key, candidate); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 && bestScore >= fuzzyThreshold {
		return best, true
	}
	return 0, false
}
