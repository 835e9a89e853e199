package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/quire/internal/codec"
)

func transformToolDef(kinds []string) mcp.Tool {
	return mcp.NewTool("transform_run",
		mcp.WithDescription("Run a document transform over local files and save the result. "+
			"A single input yields the transformed file; several inputs yield a zip archive (merge yields one PDF). "+
			"Inputs that fail are skipped and listed in the result."),
		mcp.WithString("kind", mcp.Required(), mcp.Enum(kinds...),
			mcp.Description("Transform to run")),
		mcp.WithArray("paths", mcp.Required(), mcp.Items(map[string]any{"type": "string"}),
			mcp.Description("Input files, in order. Each must sit directly in an allowed directory")),
		mcp.WithString("output_path",
			mcp.Description("Destination file or directory (default: exports dir)")),
		mcp.WithString("ranges",
			mcp.Description("split: pages to keep, e.g. \"1-3,5\"")),
		mcp.WithArray("repeat_column", mcp.Items(map[string]any{"type": "string"}),
			mcp.Description("excel-expand: header names holding the repeat count")),
		mcp.WithNumber("row",
			mcp.Description("duplicate-row: spreadsheet row number (header is row 1)")),
		mcp.WithNumber("count",
			mcp.Description("duplicate-row: copies to insert after the row")),
		mcp.WithString("compression", mcp.Enum("low", "recommended", "high"),
			mcp.Description("Archive compression profile")),
	)
}

var pagesToolDef = mcp.NewTool("pages_parse",
	mcp.WithDescription("Parse a page-range expression into sorted unique page numbers"),
	mcp.WithString("ranges", mcp.Required(), mcp.Description("Expression such as \"1-3,5,8-10\"")),
	mcp.WithNumber("page_count", mcp.Description("Drop pages beyond this count (0 = no limit)")),
)

var previewToolDef = mcp.NewTool("table_preview",
	mcp.WithDescription("Preview one page of rows from an XLSX or CSV file"),
	mcp.WithString("path", mcp.Required(), mcp.Description("Spreadsheet or CSV file")),
	mcp.WithNumber("page", mcp.Description("1-based page (default 1)")),
	mcp.WithNumber("page_size", mcp.Description("Rows per page (default 50, max 500)")),
)

var pdfPreviewToolDef = mcp.NewTool("pdf_preview",
	mcp.WithDescription("Render one page of a PDF to a PNG image"),
	mcp.WithString("path", mcp.Required(), mcp.Description("PDF file")),
	mcp.WithNumber("page", mcp.Description("1-based page (default 1)")),
	mcp.WithNumber("dpi", mcp.Description("Resolution, 36 to 300 (default 72)")),
)

var listToolDef = mcp.NewTool("jobs_list",
	mcp.WithDescription("List recorded transform jobs, newest first"),
	mcp.WithString("kind", mcp.Description("Filter by transform kind")),
	mcp.WithString("status", mcp.Enum("running", "succeeded", "failed", "cancelled"),
		mcp.Description("Filter by status")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var fetchToolDef = mcp.NewTool("job_fetch",
	mcp.WithDescription("Fetch one recorded job by ID"),
	mcp.WithString("id", mcp.Required(), mcp.Description("Job ULID")),
)

var purgeToolDef = mcp.NewTool("jobs_purge",
	mcp.WithDescription("Permanently delete finished jobs from the history"),
	mcp.WithString("kind", mcp.Description("Only purge jobs of this kind")),
	mcp.WithNumber("older_than_days", mcp.Description("Only purge jobs created more than N days ago")),
)

var exportToolDef = mcp.NewTool("jobs_export",
	mcp.WithDescription("Export the job history to a JSONL file"),
	mcp.WithString("path", mcp.Description("Destination .jsonl file (default: exports dir)")),
	mcp.WithString("kind", mcp.Description("Only export jobs of this kind")),
)

func kindNames(enabled func(codec.Kind) bool) []string {
	var names []string
	for _, k := range codec.Kinds() {
		if enabled == nil || enabled(k) {
			names = append(names, string(k))
		}
	}
	return names
}
