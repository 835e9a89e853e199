package job

// ExportRecord is one job line in a JSONL history export.
type ExportRecord struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	InputCount int      `json:"input_count"`
	InputNames []string `json:"input_names"`
	OutputName string   `json:"output_name"`
	Shape      string   `json:"shape"`
	Status     Status   `json:"status"`
	Error      string   `json:"error"`
	Skipped    []string `json:"skipped"`
	Bytes      int64    `json:"bytes"`
	CreatedAt  int64    `json:"created_at"`
	FinishedAt *int64   `json:"finished_at"`
}

// ToExportRecord converts a Job to an ExportRecord.
func (j *Job) ToExportRecord() *ExportRecord {
	return &ExportRecord{
		ID:         j.ID,
		Kind:       j.Kind,
		InputCount: j.InputCount,
		InputNames: j.InputNames,
		OutputName: j.OutputName,
		Shape:      j.Shape,
		Status:     j.Status,
		Error:      j.Error,
		Skipped:    j.Skipped,
		Bytes:      j.Bytes,
		CreatedAt:  j.CreatedAt,
		FinishedAt: j.FinishedAt,
	}
}
