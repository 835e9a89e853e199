// Package ops implements the operations shared by the web, CLI and MCP
// front-ends: running transforms with job bookkeeping, page-range previews,
// table previews and job history.
package ops

import (
	"database/sql"

	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/codec"
	"github.com/hpungsan/quire/internal/config"
	"github.com/hpungsan/quire/internal/events"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	DefaultPreviewPageSize = 50
	MaxPreviewPageSize     = 500
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps bundles what operations need. DB and Events are optional: a nil DB
// disables job history, a nil Events publishes nothing.
type Deps struct {
	DB     *sql.DB
	Config *config.Config
	Runner *batch.Runner
	Codecs *codec.Registry
	Events events.Publisher
}

func (d *Deps) config() *config.Config {
	if d.Config == nil {
		return config.DefaultConfig()
	}
	return d.Config
}

func (d *Deps) publisher() events.Publisher {
	if d.Events == nil {
		return events.NoopPublisher{}
	}
	return d.Events
}

// clampLimit applies the default and upper bound to a page size.
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}
