package extract

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"receiptbook/internal"
	"receiptbook/internal/document"
)

type Normalizer interface {
	Normalize(raw internal.RawFields) internal.Record
}

// Router picks a strategy per document and normalizes whatever it returns.
type Router struct {
	classifier document.Classifier
	text       Strategy
	vision     Strategy
	normalizer Normalizer
	log        zerolog.Logger
}

func NewRouter(text, vision Strategy, normalizer Normalizer, log zerolog.Logger) *Router {
	return &Router{
		classifier: document.NewClassifier(),
		text:       text,
		vision:     vision,
		normalizer: normalizer,
		log:        log.With().Str("component", "router").Logger(),
	}
}

// Extract returns the canonical record and the strategy that produced it, or
// nil and StrategyNone when every applicable strategy failed.
func (r *Router) Extract(ctx context.Context, doc internal.Document) (*internal.Record, internal.Strategy) {
	start := time.Now()
	route := r.classifier.Route(doc)
	log := r.log.With().Str("source_name", doc.Name).Str("route", string(route)).Logger()

	var attempts []Strategy
	switch route {
	case document.RouteHTML:
		doc.Text = document.ExtractHTMLText(doc.Content)
		attempts = []Strategy{r.text}
	case document.RouteText:
		doc.Text = document.ExtractText(doc.Content)
		attempts = []Strategy{r.text, r.vision}
	default:
		attempts = []Strategy{r.vision}
	}

	for _, s := range attempts {
		if s == nil {
			continue
		}
		raw, err := s.Extract(ctx, doc)
		if err != nil {
			log.Warn().Err(err).Str("strategy", string(s.Name())).Msg("extract.strategy_failed")
			continue
		}
		rec := r.normalizer.Normalize(raw)
		log.Info().
			Str("strategy", string(s.Name())).
			Str("receipt_number", rec.ReceiptNumber).
			Int64("elapsed_ms", time.Since(start).Milliseconds()).
			Msg("extract.ok")
		return &rec, s.Name()
	}

	log.Error().Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("extract.failed")
	return nil, internal.StrategyNone
}
