package model

// RunStatus tracks a reconciliation run through its stages.
type RunStatus string

const (
	RunStatusIdle           RunStatus = "idle"
	RunStatusMerging        RunStatus = "merging"
	RunStatusDiverging      RunStatus = "diverging"
	RunStatusDeriving       RunStatus = "deriving"
	RunStatusStagingWritten RunStatus = "staging_written"
	RunStatusPublishing     RunStatus = "publishing"
	RunStatusPublished      RunStatus = "published"
	RunStatusFailed         RunStatus = "failed"
)

// ResultStatus is the caller-facing outcome of a run.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	// ResultPartial means the run completed but at least one source adapter
	// was unavailable and the merge degraded to the remaining sources.
	ResultPartial ResultStatus = "partial"
	ResultFailed  ResultStatus = "failed"
)

// Warning is a field-level divergence or logic-check finding.
type Warning struct {
	FieldID string `json:"field_id"`
	Message string `json:"message"`
}

// RunResult is the structured outcome returned to the pipeline caller.
// Callers never see raw error text for recoverable conditions; everything
// recoverable is enumerated here as warnings.
type RunResult struct {
	EntityID            string       `json:"entity_id"`
	Status              ResultStatus `json:"status"`
	Warnings            []Warning    `json:"warnings,omitempty"`
	CompletenessPercent int          `json:"completeness_percent"`
	VersionNumber       int          `json:"version_number"`
	SourcesUsed         []string     `json:"sources_used,omitempty"`
	SourcesMissing      []string     `json:"sources_missing,omitempty"`
	DurationMS          int64        `json:"duration_ms"`
}
