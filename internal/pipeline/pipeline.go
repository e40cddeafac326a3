// Package pipeline orchestrates a reconciliation run: prefetch sources,
// waterfall merge, forward divergence, derivation, staging write, and the
// optional publish step.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/derive"
	"github.com/sells-group/reconcile-cli/internal/divergence"
	"github.com/sells-group/reconcile-cli/internal/merge"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/registry"
	"github.com/sells-group/reconcile-cli/internal/source"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// Reconciler runs the reconciliation pipeline for entities.
type Reconciler struct {
	schema   *registry.Schema
	store    store.Store
	prefetch *source.Prefetcher
	engine   *merge.Engine
	detector *divergence.Detector
	calc     *derive.Calculator
	timeout  time.Duration
	entities *keyedMutex
}

// New creates a Reconciler with all dependencies.
func New(
	schema *registry.Schema,
	st store.Store,
	prefetch *source.Prefetcher,
	calc *derive.Calculator,
	timeout time.Duration,
) *Reconciler {
	return &Reconciler{
		schema:   schema,
		store:    st,
		prefetch: prefetch,
		engine:   merge.NewEngine(schema),
		detector: divergence.NewDetector(schema),
		calc:     calc,
		timeout:  timeout,
		entities: newKeyedMutex(),
	}
}

// RunOptions control a single reconciliation run.
type RunOptions struct {
	// CreatedBy is recorded on the staging row when this run creates it.
	CreatedBy string
	// Publish writes a production snapshot after the staging write succeeds.
	Publish bool
}

// Run executes one end-to-end reconciliation for an entity. Source failures
// degrade the run to the remaining sources (status partial); only
// persistence failures abort it. The returned RunResult is always non-nil
// and structured, including on failure.
func (r *Reconciler) Run(ctx context.Context, entityID string, opts RunOptions) (*model.RunResult, error) {
	r.entities.Lock(entityID)
	defer r.entities.Unlock(entityID)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log := zap.L().With(zap.String("entity", entityID))
	start := time.Now()
	status := model.RunStatusIdle

	setStatus := func(s model.RunStatus) {
		status = s
		log.Debug("pipeline: stage", zap.String("status", string(status)))
	}

	result := &model.RunResult{EntityID: entityID, Status: model.ResultFailed}
	fail := func(err error) (*model.RunResult, error) {
		setStatus(model.RunStatusFailed)
		result.DurationMS = time.Since(start).Milliseconds()
		log.Error("pipeline: run failed", zap.Error(err))
		return result, err
	}

	existing, err := r.store.GetStaging(ctx, entityID)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: load staging"))
	}

	var rec *model.EntityRecord
	if existing != nil {
		// Work on a clone so a failed write never leaves a half-merged
		// record behind.
		rec = existing.Clone()
	} else {
		rec = &model.EntityRecord{
			EntityID:     entityID,
			Content:      map[string]model.FieldRecord{},
			LockedFields: map[string]bool{},
			Status:       model.EntityStatusDraft,
			CreatedBy:    opts.CreatedBy,
		}
	}

	// Merge.
	setStatus(model.RunStatusMerging)
	doc, kb := r.prefetch.Fetch(ctx, entityID)
	if ctx.Err() != nil {
		return fail(eris.Wrap(ctx.Err(), "pipeline: run timed out"))
	}

	docMap, kbMap := merge.SourceMap{Values: map[string]any{}}, merge.SourceMap{Values: map[string]any{}}
	if doc.Available() {
		docMap = merge.SourceMap{Name: doc.Extraction.Origin, Values: doc.Extraction.Values}
		result.SourcesUsed = append(result.SourcesUsed, doc.Adapter)
	} else {
		result.SourcesMissing = append(result.SourcesMissing, doc.Adapter)
	}
	if kb.Available() {
		kbMap = merge.SourceMap{Name: kb.Extraction.Origin, Values: kb.Extraction.Values}
		result.SourcesUsed = append(result.SourcesUsed, kb.Adapter)
	} else {
		result.SourcesMissing = append(result.SourcesMissing, kb.Adapter)
	}

	r.engine.Merge(rec, docMap, kbMap)

	// Forward divergence.
	setStatus(model.RunStatusDiverging)
	result.Warnings = r.detector.Forward(rec, docMap.Values, kbMap.Values)

	// Derivation.
	setStatus(model.RunStatusDeriving)
	derived := r.calc.Apply(rec)

	// Staging write.
	rec.CompletenessPercent = r.completeness(rec)
	rec.VersionNumber++
	rec.Status = model.EntityStatusDraft

	written, err := r.store.UpsertStaging(ctx, rec)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: staging write"))
	}
	setStatus(model.RunStatusStagingWritten)

	result.CompletenessPercent = written.CompletenessPercent
	result.VersionNumber = written.VersionNumber
	if len(result.SourcesMissing) > 0 {
		result.Status = model.ResultPartial
	} else {
		result.Status = model.ResultSuccess
	}

	// Optional publish.
	if opts.Publish {
		setStatus(model.RunStatusPublishing)
		if _, err := r.store.PublishSnapshot(ctx, written); err != nil {
			result.Status = model.ResultFailed
			return fail(eris.Wrap(err, "pipeline: publish"))
		}
		setStatus(model.RunStatusPublished)
	}

	result.DurationMS = time.Since(start).Milliseconds()
	log.Info("pipeline: run complete",
		zap.String("status", string(result.Status)),
		zap.Int("version", result.VersionNumber),
		zap.Int("completeness", result.CompletenessPercent),
		zap.Int("warnings", len(result.Warnings)),
		zap.Int("derived", len(derived)),
		zap.Strings("sources_missing", result.SourcesMissing),
	)
	return result, nil
}

// Publish writes a production snapshot of the current staging record without
// re-running the merge. It takes the entity lock so a publish cannot
// interleave with an in-flight run.
func (r *Reconciler) Publish(ctx context.Context, entityID string) (*model.ProductionSnapshot, error) {
	r.entities.Lock(entityID)
	defer r.entities.Unlock(entityID)

	rec, err := r.store.GetStaging(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load staging for publish")
	}
	if rec == nil {
		return nil, eris.Errorf("pipeline: no staging record for entity %s", entityID)
	}

	snap, err := r.store.PublishSnapshot(ctx, rec)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: publish")
	}

	zap.L().Info("pipeline: published snapshot",
		zap.String("entity", entityID),
		zap.String("snapshot", snap.ID),
		zap.Int("version", snap.VersionNumber),
	)
	return snap, nil
}

// CheckDivergence runs the backward pass: fetch fresh source maps and compare
// them against the current staging values, locks ignored. Read-only; the
// staging record is never mutated.
func (r *Reconciler) CheckDivergence(ctx context.Context, entityID string) ([]model.Warning, error) {
	rec, err := r.store.GetStaging(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load staging for check")
	}
	if rec == nil {
		return nil, eris.Errorf("pipeline: no staging record for entity %s", entityID)
	}

	doc, kb := r.prefetch.Fetch(ctx, entityID)
	docVals, kbVals := map[string]any{}, map[string]any{}
	if doc.Available() {
		docVals = doc.Extraction.Values
	}
	if kb.Available() {
		kbVals = kb.Extraction.Values
	}

	return r.detector.Backward(rec, docVals, kbVals), nil
}

// ApplyEdits merges explicit user field edits into the staging record and
// writes it back. Edits bypass the waterfall: they always win and flip the
// field's provenance to user_input.
func (r *Reconciler) ApplyEdits(ctx context.Context, entityID, editedBy string, edits map[string]any) (*model.EntityRecord, error) {
	r.entities.Lock(entityID)
	defer r.entities.Unlock(entityID)

	existing, err := r.store.GetStaging(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load staging for edit")
	}

	var rec *model.EntityRecord
	if existing != nil {
		rec = existing.Clone()
	} else {
		rec = &model.EntityRecord{
			EntityID:     entityID,
			Content:      map[string]model.FieldRecord{},
			LockedFields: map[string]bool{},
			Status:       model.EntityStatusDraft,
			CreatedBy:    editedBy,
		}
	}

	r.engine.ApplyUserEdits(rec, edits)
	rec.CompletenessPercent = r.completeness(rec)
	rec.VersionNumber++

	written, err := r.store.UpsertStaging(ctx, rec)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: staging write for edit")
	}
	return written, nil
}

// completeness is the percentage of schema fields holding a non-empty value.
func (r *Reconciler) completeness(rec *model.EntityRecord) int {
	if r.schema.Len() == 0 {
		return 0
	}
	filled := 0
	for _, sf := range r.schema.Fields {
		if fr, ok := rec.Content[sf.ID]; ok && !fr.IsEmpty() {
			filled++
		}
	}
	return filled * 100 / r.schema.Len()
}
