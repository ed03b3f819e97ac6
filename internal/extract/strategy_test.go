package extract_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"receiptbook/internal"
	"receiptbook/internal/config"
	"receiptbook/internal/extract"
	"receiptbook/internal/pipeline"
)

var testCfg = config.Config{
	LLMTextModel:   "text-model",
	LLMVisionModel: "vision-model",
	LLMTemperature: 0.1,
	LLMMaxTokens:   300,
}

var _ = Describe("TextStrategy", func() {
	var (
		chat     *stubChat
		strategy *extract.TextStrategy
	)

	BeforeEach(func() {
		chat = &stubChat{}
		strategy = extract.NewTextStrategy(chat, testCfg, zerolog.Nop())
	})

	When("the model answers with the five fields", func() {
		var (
			rec *internal.Record
			err error
		)

		BeforeEach(func() {
			chat.reply = `{"item":"coffee maker","cost":"45.00","date":"2024-03-01","source":"store a","receipt_number":"98-123"}`
			var raw internal.RawFields
			raw, err = strategy.Extract(context.Background(), internal.Document{
				Text: "STORE A ... TOTAL $45.00 ... Order# 98-123 ... 2024-03-01",
			})
			if err == nil {
				r := pipeline.NewNormalizer().Normalize(raw)
				rec = &r
			}
		})

		It("yields the canonical record", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(*rec).To(Equal(internal.Record{
				Item:          "coffee maker",
				Cost:          "45.00",
				Date:          "2024-03-01",
				Source:        "store a",
				ReceiptNumber: "98-123",
			}))
		})

		It("asks deterministically with a small budget", func() {
			Expect(chat.requests).To(HaveLen(1))
			req := chat.requests[0]
			Expect(req.Model).To(Equal("text-model"))
			Expect(req.Temperature).To(Equal(0.1))
			Expect(req.MaxTokens).To(Equal(300))
			Expect(req.JSON).To(BeTrue())
			Expect(req.Image).To(BeNil())
			Expect(req.Prompt).To(ContainSubstring("receipt_number"))
			Expect(req.Prompt).To(ContainSubstring("Order# 98-123"))
		})
	})

	It("refuses documents without text", func() {
		_, err := strategy.Extract(context.Background(), internal.Document{Text: "  "})
		Expect(errors.Is(err, extract.ErrNoText)).To(BeTrue())
		Expect(chat.requests).To(BeEmpty())
	})

	It("strips urls and truncates before prompting", func() {
		chat.reply = `{}`
		text := "see https://tracking.example/abc " + strings.Repeat("x", 6000)
		_, err := strategy.Extract(context.Background(), internal.Document{Text: text})
		Expect(err).NotTo(HaveOccurred())
		Expect(chat.requests[0].Prompt).NotTo(ContainSubstring("https://"))
		Expect(len(chat.requests[0].Prompt)).To(BeNumerically("<", 5600))
	})

	It("reports transport failures", func() {
		chat.err = context.DeadlineExceeded
		_, err := strategy.Extract(context.Background(), internal.Document{Text: "TOTAL 1.00"})
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("reports unparsable answers", func() {
		chat.reply = "Sorry, I can't help with that."
		_, err := strategy.Extract(context.Background(), internal.Document{Text: "TOTAL 1.00"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("VisionStrategy", func() {
	It("sends the image with the same instructions", func() {
		chat := &stubChat{reply: "```json\n{\"item\":\"drill\"}\n```"}
		strategy := extract.NewVisionStrategy(chat, testCfg, zerolog.Nop())

		raw, err := strategy.Extract(context.Background(), internal.Document{Name: "r.png", Ext: "png", Content: pngBytes()})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw["item"]).To(Equal("drill"))

		req := chat.requests[0]
		Expect(req.Model).To(Equal("vision-model"))
		Expect(req.Image).NotTo(BeNil())
		Expect(req.Image.MIMEType).To(Equal("image/png"))
		Expect(req.Prompt).To(ContainSubstring("receipt_number"))
	})

	It("fails on content that is not an image", func() {
		chat := &stubChat{}
		strategy := extract.NewVisionStrategy(chat, testCfg, zerolog.Nop())
		_, err := strategy.Extract(context.Background(), internal.Document{Ext: "txt", Content: []byte("hello")})
		Expect(err).To(HaveOccurred())
		Expect(chat.requests).To(BeEmpty())
	})
})
