package app

// PipelineRun tracks a CLI operation against the catalog. Runs are created
// in memory with ID=0; only catalog-touching commands persist them (giving
// them an auto-increment ID from the catalog_runs table).
type PipelineRun struct {
	ID         int64
	RunID      string // UUID, also used as the log correlation ID
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewPipelineRun creates a new in-memory run record.
func NewPipelineRun(runID, operation, parameters string) *PipelineRun {
	return &PipelineRun{
		RunID:      runID,
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this run has been saved to the catalog.
func (r *PipelineRun) Persisted() bool {
	return r.ID != 0
}
