package extract

import (
	"receiptbook/internal/util"
)

const maxPromptText = 5000

const systemPrompt = "You are a receipts parser. Return ONLY a JSON object, no prose and no Markdown."

const fieldInstructions = `Extract from this receipt a JSON object with exactly these keys:
{
  "item": "the main purchased item in 1-2 words",
  "cost": "total amount paid, digits and decimal point only",
  "date": "purchase date as YYYY-MM-DD",
  "source": "store or vendor name",
  "receipt_number": "receipt, order or invoice number if available, otherwise empty"
}`

// SanitizeText collapses whitespace, drops URLs and caps the text sent to the model.
func SanitizeText(text string) string {
	text = util.StripURLs(text)
	text = util.NormalizeSpaces(text)
	return util.Truncate(text, maxPromptText)
}

func textPrompt(text string) string {
	return fieldInstructions + "\n\nReceipt text:\n" + SanitizeText(text)
}

func visionPrompt() string {
	return fieldInstructions + "\n\nThe receipt is in the attached image."
}
