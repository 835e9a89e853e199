package ops

import "github.com/hpungsan/quire/internal/pagerange"

// ParsePagesInput contains parameters for the ParsePages operation.
type ParsePagesInput struct {
	Ranges    string
	PageCount int // optional; when > 0 pages beyond it are dropped
}

// ParsePagesOutput describes the pages a range expression selects.
type ParsePagesOutput struct {
	Pages      []int  `json:"pages"`
	Normalized string `json:"normalized"`
	Count      int    `json:"count"`
	Empty      bool   `json:"empty"`
}

// ParsePages previews a page-range expression without touching any file.
func ParsePages(input ParsePagesInput) *ParsePagesOutput {
	spec := pagerange.Parse(input.Ranges)
	if input.PageCount > 0 {
		spec = spec.Within(input.PageCount)
	}

	pages := spec.Indices()
	if pages == nil {
		pages = []int{}
	}
	return &ParsePagesOutput{
		Pages:      pages,
		Normalized: spec.String(),
		Count:      spec.Len(),
		Empty:      spec.Empty(),
	}
}
