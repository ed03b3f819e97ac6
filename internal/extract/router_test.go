package extract_test

import (
	"context"
	"errors"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"receiptbook/internal"
	"receiptbook/internal/extract"
	"receiptbook/internal/pipeline"
)

func fixture(name string) []byte {
	blob, err := os.ReadFile("testdata/" + name)
	Expect(err).NotTo(HaveOccurred())
	return blob
}

var _ = Describe("Router", func() {
	var (
		text   *fakeStrategy
		vision *fakeStrategy
		router *extract.Router
		goodRaw = internal.RawFields{
			"item": "coffee maker", "cost": "45.00", "date": "2024-03-01",
			"source": "store a", "receipt_number": "98-123",
		}
	)

	BeforeEach(func() {
		text = &fakeStrategy{name: internal.StrategyText, raw: goodRaw}
		vision = &fakeStrategy{name: internal.StrategyVision, raw: goodRaw}
		router = extract.NewRouter(text, vision, pipeline.NewNormalizer(), zerolog.Nop())
	})

	When("the pdf has a text layer", func() {
		var doc internal.Document

		BeforeEach(func() {
			doc = internal.Document{Name: "r.pdf", Ext: "pdf", Content: fixture("text_receipt.pdf")}
		})

		It("uses the text strategy with the extracted text", func() {
			rec, used := router.Extract(context.Background(), doc)
			Expect(used).To(Equal(internal.StrategyText))
			Expect(rec).NotTo(BeNil())
			Expect(rec.ReceiptNumber).To(Equal("98-123"))
			Expect(text.docs[0].Text).To(ContainSubstring("STORE A"))
			Expect(vision.calls).To(BeZero())
		})

		It("falls back to vision on the same bytes when text extraction fails", func() {
			text.err = errors.New("timeout")
			rec, used := router.Extract(context.Background(), doc)
			Expect(used).To(Equal(internal.StrategyVision))
			Expect(rec).NotTo(BeNil())
			Expect(vision.docs[0].Content).To(Equal(doc.Content))
		})
	})

	It("sends a pdf with a nearly empty text layer straight to vision", func() {
		_, used := router.Extract(context.Background(), internal.Document{Ext: "pdf", Content: fixture("scanned_receipt.pdf")})
		Expect(used).To(Equal(internal.StrategyVision))
		Expect(text.calls).To(BeZero())
	})

	It("sends images straight to vision", func() {
		_, used := router.Extract(context.Background(), internal.Document{Ext: "png", Content: pngBytes()})
		Expect(used).To(Equal(internal.StrategyVision))
		Expect(text.calls).To(BeZero())
	})

	When("the document is an html e-receipt", func() {
		var doc internal.Document

		BeforeEach(func() {
			doc = internal.Document{Name: "order.html", Ext: "html", Content: fixture("receipt.html")}
		})

		It("flattens it for the text strategy", func() {
			_, used := router.Extract(context.Background(), doc)
			Expect(used).To(Equal(internal.StrategyText))
			Expect(text.docs[0].Text).To(ContainSubstring("Cordless drill"))
			Expect(text.docs[0].Text).NotTo(ContainSubstring("font-family"))
		})

		It("never falls back to vision", func() {
			text.err = errors.New("bad json")
			rec, used := router.Extract(context.Background(), doc)
			Expect(rec).To(BeNil())
			Expect(used).To(Equal(internal.StrategyNone))
			Expect(vision.calls).To(BeZero())
		})
	})

	It("returns nil when every strategy fails", func() {
		text.err = errors.New("down")
		vision.err = errors.New("down")
		rec, used := router.Extract(context.Background(), internal.Document{Ext: "pdf", Content: fixture("text_receipt.pdf")})
		Expect(rec).To(BeNil())
		Expect(used).To(Equal(internal.StrategyNone))
	})

	It("returns nil when vision is not configured", func() {
		router = extract.NewRouter(text, nil, pipeline.NewNormalizer(), zerolog.Nop())
		rec, used := router.Extract(context.Background(), internal.Document{Ext: "png", Content: pngBytes()})
		Expect(rec).To(BeNil())
		Expect(used).To(Equal(internal.StrategyNone))
	})
})
