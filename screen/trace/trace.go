// Package trace records what each pass of a batch did to every variant.
// It has no dependency on screen/ and stores pure data types.
package trace

// Stage names the pipeline pass a trace belongs to.
type Stage string

const (
	StageMinimize Stage = "minimize"
	StageSelect   Stage = "select"
	StagePocket   Stage = "pocket"
	StageDock     Stage = "dock"
)

// Status is the per-variant result of a pass.
type Status string

const (
	StatusCompleted    Status = "completed"
	StatusExhausted    Status = "exhausted"
	StatusFailed       Status = "failed"
	StatusSkipped      Status = "skipped"
	StatusUndetermined Status = "undetermined"
)

// VariantRecord captures one variant's result within a pass.
type VariantRecord struct {
	Variant  string
	Status   Status
	Attempts int     // retries issued (minimize) or attempts ranked (select)
	Winner   string  // winning attempt base name (select only)
	Force    float64 // winner's maximum force (select only)
	Reason   string  // failure or skip reason, empty on completion
}

// BatchTrace collects variant records for one pass over a batch root.
type BatchTrace struct {
	RunID   string
	Stage   Stage
	Records []VariantRecord
}

// NewBatchTrace creates a BatchTrace ready for recording.
func NewBatchTrace(runID string, stage Stage) *BatchTrace {
	return &BatchTrace{
		RunID:   runID,
		Stage:   stage,
		Records: make([]VariantRecord, 0),
	}
}

// Record appends a variant record.
func (bt *BatchTrace) Record(r VariantRecord) {
	bt.Records = append(bt.Records, r)
}
