package source

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/resilience"
)

// mockAdapter scripts Extract responses for prefetch tests.
type mockAdapter struct {
	name    string
	values  map[string]any
	origin  string
	err     error
	failFor int32
	calls   atomic.Int32
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Extract(ctx context.Context, entityID string) (*Extraction, error) {
	n := m.calls.Add(1)
	if m.err != nil && (m.failFor == 0 || n <= m.failFor) {
		return nil, m.err
	}
	origin := m.origin
	if origin == "" {
		origin = m.name
	}
	return &Extraction{Origin: origin, Values: m.values}, nil
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
		OnRetry:        func(int, error) {},
	}
}

func TestFetch_BothAvailable(t *testing.T) {
	doc := &mockAdapter{name: "document", origin: "om.pdf", values: map[string]any{"noi": 1.0}}
	kb := &mockAdapter{name: "knowledge-base", values: map[string]any{"noi": 2.0}}
	p := NewPrefetcher(doc, kb, fastRetry(3))

	docRes, kbRes := p.Fetch(context.Background(), "deal-1")

	require.True(t, docRes.Available())
	require.True(t, kbRes.Available())
	assert.Equal(t, "om.pdf", docRes.Extraction.Origin)
	assert.Equal(t, "knowledge-base", kbRes.Extraction.Origin)
}

func TestFetch_OneSourceDegrades(t *testing.T) {
	doc := &mockAdapter{name: "document", err: resilience.NewTransientError(errors.New("503"), 503)}
	kb := &mockAdapter{name: "knowledge-base", values: map[string]any{"noi": 2.0}}
	p := NewPrefetcher(doc, kb, fastRetry(2))

	docRes, kbRes := p.Fetch(context.Background(), "deal-1")

	assert.False(t, docRes.Available())
	assert.True(t, kbRes.Available())
	// Retries were actually attempted before degrading.
	assert.Equal(t, int32(2), doc.calls.Load())
}

func TestFetch_TransientFailureRecovers(t *testing.T) {
	doc := &mockAdapter{
		name:    "document",
		values:  map[string]any{"noi": 1.0},
		err:     resilience.NewTransientError(errors.New("flaky"), 502),
		failFor: 1,
	}
	kb := &mockAdapter{name: "knowledge-base", values: map[string]any{}}
	p := NewPrefetcher(doc, kb, fastRetry(3))

	docRes, _ := p.Fetch(context.Background(), "deal-1")

	require.True(t, docRes.Available())
	assert.Equal(t, int32(2), doc.calls.Load())
}

func TestFetch_PermanentFailureNoRetry(t *testing.T) {
	doc := &mockAdapter{name: "document", err: errors.New("bad credentials")}
	kb := &mockAdapter{name: "knowledge-base", values: map[string]any{}}
	p := NewPrefetcher(doc, kb, fastRetry(3))

	docRes, _ := p.Fetch(context.Background(), "deal-1")

	assert.False(t, docRes.Available())
	assert.Equal(t, int32(1), doc.calls.Load())
}

func TestFetch_BothUnavailable(t *testing.T) {
	doc := &mockAdapter{name: "document", err: errors.New("down")}
	kb := &mockAdapter{name: "knowledge-base", err: errors.New("down")}
	p := NewPrefetcher(doc, kb, fastRetry(1))

	docRes, kbRes := p.Fetch(context.Background(), "deal-1")

	assert.False(t, docRes.Available())
	assert.False(t, kbRes.Available())
	assert.Equal(t, "document", docRes.Adapter)
	assert.Equal(t, "knowledge-base", kbRes.Adapter)
}
