package pipeline

import "strings"

type DetectResult struct {
	IsReceipt bool
	Score     float64
	Reason    string
}

var detectKeywords = []string{"receipt", "invoice", "order", "payment", "purchase", "total", "paid", "statement"}

var amountMarkers = []string{"$", "usd", "total:", "amount"}

// DetectReceipt scores whether an unread message is likely to carry a receipt.
func DetectReceipt(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.3
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}

	for _, m := range amountMarkers {
		if strings.Contains(text, m) {
			score += 0.1
			break
		}
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".pdf") {
			score += 0.3
			break
		}
		if isImageName(ln) && strings.ContainsAny(ln, "0123456789") {
			score += 0.2
			break
		}
	}

	if score > 1 {
		score = 1
	}

	isReceipt := score >= 0.3
	reason := "rules_negative"
	if isReceipt {
		reason = "rules_positive"
	}
	return DetectResult{IsReceipt: isReceipt, Score: score, Reason: reason}
}

func isImageName(name string) bool {
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".heic", ".heif", ".webp"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
