// Package source defines the adapter interface over the untrusted field
// sources and the concurrent prefetch that feeds the merge engine.
package source

import (
	"context"

	"github.com/sells-group/reconcile-cli/pkg/extractor"
	"github.com/sells-group/reconcile-cli/pkg/knowledge"
)

// Extraction is one source's opinion: a flat field map plus the origin name
// recorded into provenance (document filename, knowledge-base provider).
type Extraction struct {
	Origin string
	Values map[string]any
}

// Adapter extracts a flat field map for an entity from one source. Adapters
// may omit fields they have no opinion on.
type Adapter interface {
	// Name identifies the source kind for logs and degradation reporting.
	Name() string
	Extract(ctx context.Context, entityID string) (*Extraction, error)
}

// DocumentAdapter reads the document-extraction service.
type DocumentAdapter struct {
	client extractor.Client
}

// NewDocumentAdapter wraps an extractor client as an Adapter.
func NewDocumentAdapter(client extractor.Client) *DocumentAdapter {
	return &DocumentAdapter{client: client}
}

func (a *DocumentAdapter) Name() string {
	return "document"
}

func (a *DocumentAdapter) Extract(ctx context.Context, entityID string) (*Extraction, error) {
	resp, err := a.client.Fields(ctx, entityID)
	if err != nil {
		return nil, err
	}
	origin := resp.Document
	if origin == "" {
		origin = a.Name()
	}
	return &Extraction{Origin: origin, Values: resp.Fields}, nil
}

// KnowledgeAdapter reads the external knowledge base.
type KnowledgeAdapter struct {
	client knowledge.Client
}

// NewKnowledgeAdapter wraps a knowledge client as an Adapter.
func NewKnowledgeAdapter(client knowledge.Client) *KnowledgeAdapter {
	return &KnowledgeAdapter{client: client}
}

func (a *KnowledgeAdapter) Name() string {
	return "knowledge-base"
}

func (a *KnowledgeAdapter) Extract(ctx context.Context, entityID string) (*Extraction, error) {
	resp, err := a.client.Record(ctx, entityID)
	if err != nil {
		return nil, err
	}
	origin := resp.Provider
	if origin == "" {
		origin = a.Name()
	}
	return &Extraction{Origin: origin, Values: resp.Fields}, nil
}
