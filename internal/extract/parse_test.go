package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"receiptbook/internal"
	"receiptbook/internal/config"
)

var _ = Describe("cleanModelJSON", func() {
	It("strips a json fence", func() {
		Expect(cleanModelJSON("```json\n{\"item\":\"pen\"}\n```")).To(Equal(`{"item":"pen"}`))
	})

	It("strips a bare fence", func() {
		Expect(cleanModelJSON("```\n{\"a\":1}\n```")).To(Equal(`{"a":1}`))
	})

	It("drops prose around the object", func() {
		Expect(cleanModelJSON("Here you go: {\"a\":1} hope that helps")).To(Equal(`{"a":1}`))
	})

	It("leaves plain json alone", func() {
		Expect(cleanModelJSON(`  {"a":1}  `)).To(Equal(`{"a":1}`))
	})
})

var _ = Describe("parseRawFields", func() {
	It("keeps numbers verbatim", func() {
		raw, err := parseRawFields(`{"cost": 45.00, "receipt_number": 98123}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw["cost"]).To(Equal(json.Number("45.00")))
		Expect(raw["receipt_number"]).To(Equal(json.Number("98123")))
	})

	It("fails on empty content", func() {
		_, err := parseRawFields("   ")
		Expect(errors.Is(err, ErrEmptyResponse)).To(BeTrue())
	})

	It("fails on non-json content", func() {
		_, err := parseRawFields("I could not read this receipt")
		Expect(err).To(HaveOccurred())
	})

	It("fails on a top-level array", func() {
		_, err := parseRawFields(`[1,2]`)
		Expect(err).To(HaveOccurred())
	})

	It("tolerates missing keys", func() {
		raw, err := parseRawFields(`{"item":"pen"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(HaveLen(1))
	})
})

var _ = Describe("checkDrift", func() {
	It("accepts the full shape", func() {
		Expect(checkDrift(`{"item":"a","cost":"1","date":"2024-01-01","source":"b","receipt_number":"c"}`)).To(Succeed())
	})

	It("reports missing keys", func() {
		Expect(checkDrift(`{"item":"a"}`)).NotTo(Succeed())
	})
})

var _ = Describe("SanitizeText", func() {
	It("collapses whitespace and strips urls", func() {
		Expect(SanitizeText("TOTAL \n\n $4.50  visit https://shop.example/r?id=1 now")).To(Equal("TOTAL $4.50 visit now"))
	})

	It("caps the prompt text", func() {
		Expect([]rune(SanitizeText(strings.Repeat("ab ", 4000)))).To(HaveLen(maxPromptText))
	})
})

type stubModels struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (s *stubModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.model, s.contents, s.config = model, contents, cfg
	return s.resp, s.err
}

var _ = Describe("GeminiVision", func() {
	var (
		models *stubModels
		vision *GeminiVision
		doc    internal.Document
	)

	BeforeEach(func() {
		models = &stubModels{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "```json\n{\"item\":\"drill\",\"cost\":\"129.99\",\"date\":\"2024-04-12\",\"source\":\"home depot\",\"receipt_number\":\"HD-1\"}\n```"},
			}}}},
		}}
		cfg := config.Config{GeminiModel: "gemini-test", LLMTemperature: 0.1, LLMTimeoutMs: 1000}
		vision = newGeminiVision(models, cfg, zerolog.Nop())
		doc = internal.Document{Name: "r.png", Ext: "png", Content: pngImage()}
	})

	It("sends the image inline and asks for json", func() {
		raw, err := vision.Extract(context.Background(), doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw["receipt_number"]).To(Equal("HD-1"))
		Expect(models.model).To(Equal("gemini-test"))
		Expect(models.config.ResponseMIMEType).To(Equal("application/json"))
		Expect(models.contents).To(HaveLen(1))
		Expect(models.contents[0].Parts[1].InlineData.MIMEType).To(Equal("image/png"))
	})

	It("fails on an empty response", func() {
		models.resp = &genai.GenerateContentResponse{}
		_, err := vision.Extract(context.Background(), doc)
		Expect(errors.Is(err, ErrEmptyResponse)).To(BeTrue())
	})

	It("fails when the call fails", func() {
		models.err = errors.New("quota")
		_, err := vision.Extract(context.Background(), doc)
		Expect(err).To(HaveOccurred())
	})
})
