package job

// Summary is a job's listing view: everything but the per-item name lists.
type Summary struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	InputCount int    `json:"input_count"`
	OutputName string `json:"output_name,omitempty"`
	Shape      string `json:"shape,omitempty"`
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`

	// SkippedCount is the number of items dropped by skip-and-continue
	SkippedCount int `json:"skipped_count"`

	Bytes      int64  `json:"bytes"`
	CreatedAt  int64  `json:"created_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}

// ToSummary converts a Job to a Summary.
func (j *Job) ToSummary() Summary {
	return Summary{
		ID:           j.ID,
		Kind:         j.Kind,
		InputCount:   j.InputCount,
		OutputName:   j.OutputName,
		Shape:        j.Shape,
		Status:       j.Status,
		Error:        j.Error,
		SkippedCount: len(j.Skipped),
		Bytes:        j.Bytes,
		CreatedAt:    j.CreatedAt,
		FinishedAt:   j.FinishedAt,
	}
}
