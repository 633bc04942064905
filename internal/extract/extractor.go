// internal/extract/extractor.go
// Artifact extraction from a completed provider page. Providers deliver
// results through several mechanisms, so extraction is a fixed-priority
// strategy chain: embedded data is free, an in-page fetch is one network
// round trip, and clicking a download control is the interaction-heavy last
// resort. Adding a fifth mechanism means adding a strategy, not a branch.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/browser"
)

// ErrNoArtifact is returned when no strategy produced data.
var ErrNoArtifact = errors.New("no extraction strategy produced an artifact")

// Strategy is one artifact-delivery mechanism. Extract reports
// matched=false when the page exposes no element this strategy handles, in
// which case the chain moves on.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, pg browser.Page, selector string, base *url.URL) (art *schemas.Artifact, matched bool, err error)
}

// Extractor runs the strategy chain over a profile's output locators.
type Extractor struct {
	logger     *zap.Logger
	strategies []Strategy
}

// New builds an extractor with the standard strategy order: embedded data,
// blob fetch, direct link, download click.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{
		logger: logger.Named("extractor"),
		strategies: []Strategy{
			&embeddedStrategy{},
			&blobStrategy{},
			&linkStrategy{},
			&downloadStrategy{},
		},
	}
}

// NewWithStrategies builds an extractor with an explicit chain. Used by
// tests and by callers adding a provider-specific mechanism.
func NewWithStrategies(logger *zap.Logger, strategies ...Strategy) *Extractor {
	return &Extractor{logger: logger.Named("extractor"), strategies: strategies}
}

// Extract walks strategies in priority order; within each strategy, output
// locators are probed in their declared order. The first artifact wins.
func (e *Extractor) Extract(ctx context.Context, pg browser.Page, prof schemas.SelectorProfile) (*schemas.Artifact, error) {
	base, err := url.Parse(prof.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider url %q: %w", prof.URL, err)
	}

	var lastErr error
	for _, strategy := range e.strategies {
		for _, sel := range prof.Outputs {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			art, matched, err := strategy.Extract(ctx, pg, sel, base)
			if err != nil {
				// A matched-but-broken delivery path should not stop the
				// later strategies from trying.
				e.logger.Debug("Extraction strategy failed.",
					zap.String("strategy", strategy.Name()),
					zap.String("selector", sel),
					zap.Error(err))
				lastErr = err
				continue
			}
			if !matched {
				continue
			}
			if art != nil && len(art.Bytes) > 0 {
				art.Source = strategy.Name()
				e.logger.Debug("Artifact extracted.",
					zap.String("strategy", strategy.Name()),
					zap.String("content_type", art.ContentType),
					zap.Int("size", len(art.Bytes)))
				return art, nil
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w (last failure: %v)", ErrNoArtifact, lastErr)
	}
	return nil, ErrNoArtifact
}
