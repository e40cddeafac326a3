package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/pkg/extractor"
	"github.com/sells-group/reconcile-cli/pkg/knowledge"
)

type stubExtractor struct {
	resp *extractor.FieldsResponse
	err  error
}

func (s *stubExtractor) Fields(ctx context.Context, entityID string) (*extractor.FieldsResponse, error) {
	return s.resp, s.err
}

type stubKnowledge struct {
	resp *knowledge.RecordResponse
	err  error
}

func (s *stubKnowledge) Record(ctx context.Context, entityID string) (*knowledge.RecordResponse, error) {
	return s.resp, s.err
}

func TestDocumentAdapter_OriginFromDocument(t *testing.T) {
	a := NewDocumentAdapter(&stubExtractor{resp: &extractor.FieldsResponse{
		EntityID: "deal-1",
		Document: "om-2024.pdf",
		Fields:   map[string]any{"noi": 250000.0},
	}})

	ext, err := a.Extract(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "om-2024.pdf", ext.Origin)
	assert.Equal(t, 250000.0, ext.Values["noi"])
}

func TestDocumentAdapter_FallbackOrigin(t *testing.T) {
	a := NewDocumentAdapter(&stubExtractor{resp: &extractor.FieldsResponse{
		EntityID: "deal-1",
		Fields:   map[string]any{},
	}})

	ext, err := a.Extract(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "document", ext.Origin)
}

func TestDocumentAdapter_PropagatesError(t *testing.T) {
	a := NewDocumentAdapter(&stubExtractor{err: errors.New("service down")})

	_, err := a.Extract(context.Background(), "deal-1")
	assert.Error(t, err)
}

func TestKnowledgeAdapter_OriginFromProvider(t *testing.T) {
	asOf := time.Now()
	a := NewKnowledgeAdapter(&stubKnowledge{resp: &knowledge.RecordResponse{
		EntityID: "deal-1",
		Provider: "costar",
		Fields:   map[string]any{"lenderName": "Wells Fargo"},
		AsOf:     &asOf,
	}})

	ext, err := a.Extract(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "costar", ext.Origin)
	assert.Equal(t, "Wells Fargo", ext.Values["lenderName"])
}

func TestKnowledgeAdapter_FallbackOrigin(t *testing.T) {
	a := NewKnowledgeAdapter(&stubKnowledge{resp: &knowledge.RecordResponse{
		EntityID: "deal-1",
		Fields:   map[string]any{},
	}})

	ext, err := a.Extract(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "knowledge-base", ext.Origin)
}

func TestAdapterNames(t *testing.T) {
	assert.Equal(t, "document", NewDocumentAdapter(nil).Name())
	assert.Equal(t, "knowledge-base", NewKnowledgeAdapter(nil).Name())
}
