package source

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reconcile-cli/internal/resilience"
)

// Result is the outcome of prefetching one source. A source that exhausted
// its retries is absent (Extraction == nil), not an error: the pipeline
// degrades to whichever sources succeeded.
type Result struct {
	Adapter    string
	Extraction *Extraction
}

// Available reports whether the source produced a field map.
func (r Result) Available() bool {
	return r.Extraction != nil
}

// Prefetcher fetches all sources concurrently before the merge begins. The
// waterfall only needs both results in hand, not a strict call order.
type Prefetcher struct {
	document  Adapter
	knowledge Adapter
	retry     resilience.RetryConfig
}

// NewPrefetcher creates a Prefetcher over the two source adapters.
func NewPrefetcher(document, knowledge Adapter, retry resilience.RetryConfig) *Prefetcher {
	return &Prefetcher{document: document, knowledge: knowledge, retry: retry}
}

// Fetch extracts from both sources in parallel, each with bounded retry.
// It never returns an error for source failures; both results may be absent,
// in which case the merge run is a no-op apart from field materialization.
func (p *Prefetcher) Fetch(ctx context.Context, entityID string) (doc, kb Result) {
	doc = Result{Adapter: p.document.Name()}
	kb = Result{Adapter: p.knowledge.Name()}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc.Extraction = p.fetchOne(gCtx, p.document, entityID)
		return nil
	})
	g.Go(func() error {
		kb.Extraction = p.fetchOne(gCtx, p.knowledge, entityID)
		return nil
	})
	_ = g.Wait()
	return doc, kb
}

func (p *Prefetcher) fetchOne(ctx context.Context, a Adapter, entityID string) *Extraction {
	cfg := p.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(a.Name())
	}

	ext, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Extraction, error) {
		return a.Extract(ctx, entityID)
	})
	if err != nil {
		zap.L().Warn("source unavailable after retries",
			zap.String("source", a.Name()),
			zap.String("entity", entityID),
			zap.Error(err),
		)
		return nil
	}
	return ext
}
