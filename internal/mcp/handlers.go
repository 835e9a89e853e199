package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/quire/internal/config"
	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

func (h *Handlers) cfg() *config.Config {
	if h.deps.Config == nil {
		return config.DefaultConfig()
	}
	return h.deps.Config
}

// Request types for each tool

// TransformRequest represents the arguments for transform_run.
type TransformRequest struct {
	Kind         string   `json:"kind"`
	Paths        []string `json:"paths"`
	OutputPath   string   `json:"output_path,omitempty"`
	Ranges       string   `json:"ranges,omitempty"`
	RepeatColumn []string `json:"repeat_column,omitempty"`
	Row          int      `json:"row,omitempty"`
	Count        int      `json:"count,omitempty"`
	Compression  string   `json:"compression,omitempty"`
}

// PagesRequest represents the arguments for pages_parse.
type PagesRequest struct {
	Ranges    string `json:"ranges"`
	PageCount int    `json:"page_count,omitempty"`
}

// PreviewRequest represents the arguments for table_preview.
type PreviewRequest struct {
	Path     string `json:"path"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// PDFPreviewRequest represents the arguments for pdf_preview.
type PDFPreviewRequest struct {
	Path string `json:"path"`
	Page int    `json:"page,omitempty"`
	DPI  int    `json:"dpi,omitempty"`
}

// ListRequest represents the arguments for jobs_list.
type ListRequest struct {
	Kind   string `json:"kind,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// FetchRequest represents the arguments for job_fetch.
type FetchRequest struct {
	ID string `json:"id"`
}

// PurgeRequest represents the arguments for jobs_purge.
type PurgeRequest struct {
	Kind          *string `json:"kind,omitempty"`
	OlderThanDays int     `json:"older_than_days,omitempty"`
}

// ExportRequest represents the arguments for jobs_export.
type ExportRequest struct {
	Path string  `json:"path,omitempty"`
	Kind *string `json:"kind,omitempty"`
}

// Handler implementations

// HandleTransform handles the transform_run tool call.
func (h *Handlers) HandleTransform(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TransformRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Kind) == "" {
		return errorResult(errors.NewInvalidRequest("kind is required")), nil
	}

	items, err := ops.ReadInputs(ctx, h.cfg(), input.Paths)
	if err != nil {
		return errorResult(err), nil
	}

	var saved *ops.SaveOutput
	_, err = ops.Deliver(ctx, h.deps, ops.TransformInput{
		Kind:         input.Kind,
		Inputs:       items,
		Ranges:       input.Ranges,
		RepeatColumn: input.RepeatColumn,
		Row:          input.Row,
		Count:        input.Count,
		Compression:  input.Compression,
	}, func(out *ops.TransformOutput) error {
		var err error
		saved, err = ops.SaveResult(h.cfg(), out, ops.SaveInput{Path: input.OutputPath})
		return err
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(saved)
}

// HandleParsePages handles the pages_parse tool call.
func (h *Handlers) HandleParsePages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PagesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(ops.ParsePages(ops.ParsePagesInput{
		Ranges:    input.Ranges,
		PageCount: input.PageCount,
	}))
}

// HandlePreview handles the table_preview tool call.
func (h *Handlers) HandlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PreviewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	items, err := ops.ReadInputs(ctx, h.cfg(), []string{input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.PreviewTable(ops.PreviewInput{
		Item:     items[0],
		Page:     input.Page,
		PageSize: input.PageSize,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePDFPreview handles the pdf_preview tool call. The page comes back
// as image content next to a one-line description.
func (h *Handlers) HandlePDFPreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PDFPreviewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	items, err := ops.ReadInputs(ctx, h.cfg(), []string{input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.PreviewPDF(ctx, h.deps, ops.PDFPreviewInput{
		Item: items[0],
		Page: input.Page,
		DPI:  input.DPI,
	})
	if err != nil {
		return errorResult(err), nil
	}

	data := strings.TrimPrefix(result.Preview, "data:"+result.MediaType+";base64,")
	text := fmt.Sprintf("Page %d of %s at %d dpi", result.Page, items[0].Name, result.DPI)
	return mcp.NewToolResultImage(text, data, result.MediaType), nil
}

// HandleList handles the jobs_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListJobs(h.deps.DB, ops.ListInput{
		Kind:   input.Kind,
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFetch handles the job_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.FetchJob(h.deps.DB, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the jobs_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.PurgeJobs(h.deps.DB, ops.PurgeInput{
		Kind:          input.Kind,
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the jobs_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportJobs(ctx, h.deps.DB, h.cfg(), ops.ExportInput{
		Path: input.Path,
		Kind: input.Kind,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result with IsError set. INTERNAL errors
// carry a generic message and no details.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{
		"code":    string(errors.ErrInternal),
		"message": "an internal error occurred",
		"status":  500,
	}

	if qErr, ok := errors.As(err); ok && qErr.Code != errors.ErrInternal {
		msg := qErr.Message
		// Keep context added by wrapping, e.g. "item a.pdf: ..."
		if outer := err.Error(); outer != qErr.Error() {
			msg = strings.Replace(outer, qErr.Error(), qErr.Message, 1)
		}
		errorObj["code"] = string(qErr.Code)
		errorObj["message"] = msg
		errorObj["status"] = qErr.Status
		if qErr.Details != nil {
			errorObj["details"] = qErr.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
