package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/quire/internal/codec"
	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/ops"
)

// Handlers contains HTTP route handlers for the file API.
type Handlers struct {
	deps    *ops.Deps
	version string
}

func (h *Handlers) maxUpload() int64 {
	if h.deps.Config == nil {
		return 0
	}
	return h.deps.Config.MaxUploadBytes
}

// transform parses the upload, lets fill complete the input and streams the
// result back.
func (h *Handlers) transform(w http.ResponseWriter, r *http.Request, kind codec.Kind, fields []string, fill func(*http.Request, *ops.TransformInput) error) {
	if err := parseUpload(w, r, h.maxUpload()); err != nil {
		renderError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	items, err := uploadedItems(r, h.maxUpload(), fields...)
	if err != nil {
		renderError(w, err)
		return
	}

	input := ops.TransformInput{Kind: string(kind), Inputs: items}
	if fill != nil {
		if err := fill(r, &input); err != nil {
			renderError(w, err)
			return
		}
	}

	if _, err := ops.Deliver(r.Context(), h.deps, input, streamResult(w)); err != nil {
		renderError(w, err)
	}
}

// HandleCompress handles POST /files/compress-files.
func (h *Handlers) HandleCompress(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, codec.KindCompress, []string{"files"}, func(r *http.Request, in *ops.TransformInput) error {
		in.Compression = r.FormValue("compression_level")
		return nil
	})
}

// HandleConvertToPDF handles POST /files/convert-to-pdf.
func (h *Handlers) HandleConvertToPDF(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, codec.KindConvertToPDF, []string{"files"}, nil)
}

// HandleSplit handles POST /files/split-pdf.
func (h *Handlers) HandleSplit(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, codec.KindSplit, []string{"file", "files"}, func(r *http.Request, in *ops.TransformInput) error {
		in.Ranges = r.FormValue("ranges")
		return nil
	})
}

// HandleMerge handles POST /files/merge-pdfs.
func (h *Handlers) HandleMerge(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, codec.KindMerge, []string{"files"}, nil)
}

// HandleConvertToWord handles POST /files/convert-to-word.
func (h *Handlers) HandleConvertToWord(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, codec.KindConvertToWord, []string{"files"}, nil)
}

// HandleExcelExpand handles POST /excel/upload.
func (h *Handlers) HandleExcelExpand(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, codec.KindExcelExpand, []string{"file", "files"}, func(r *http.Request, in *ops.TransformInput) error {
		for _, c := range r.MultipartForm.Value["repeat_column"] {
			if c = strings.TrimSpace(c); c != "" {
				in.RepeatColumn = append(in.RepeatColumn, c)
			}
		}
		return nil
	})
}

// HandleDuplicateRow handles POST /excel/duplicate-row.
func (h *Handlers) HandleDuplicateRow(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, codec.KindDuplicateRow, []string{"file", "files"}, func(r *http.Request, in *ops.TransformInput) error {
		row, err := formInt(r, "row", 0)
		if err != nil {
			return err
		}
		count, err := formInt(r, "count", 1)
		if err != nil {
			return err
		}
		in.Row, in.Count = row, count
		return nil
	})
}

// HandleExcelPreview handles POST /excel/preview: one page of an uploaded table.
func (h *Handlers) HandleExcelPreview(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r, h.maxUpload()); err != nil {
		renderError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	items, err := uploadedItems(r, h.maxUpload(), "file")
	if err != nil {
		renderError(w, err)
		return
	}
	page, err := formInt(r, "page", 1)
	if err != nil {
		renderError(w, err)
		return
	}
	pageSize, err := formInt(r, "page_size", ops.DefaultPreviewPageSize)
	if err != nil {
		renderError(w, err)
		return
	}

	out, err := ops.PreviewTable(ops.PreviewInput{Item: items[0], Page: page, PageSize: pageSize})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandlePDFPreview handles POST /files/pdf-preview. It renders one page of
// the uploaded PDF and returns it as a PNG data URI.
func (h *Handlers) HandlePDFPreview(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r, h.maxUpload()); err != nil {
		renderError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	items, err := uploadedItems(r, h.maxUpload(), "file")
	if err != nil {
		renderError(w, err)
		return
	}
	page, err := formInt(r, "page", 1)
	if err != nil {
		renderError(w, err)
		return
	}
	dpi, err := formInt(r, "dpi", 0)
	if err != nil {
		renderError(w, err)
		return
	}

	out, err := ops.PreviewPDF(r.Context(), h.deps, ops.PDFPreviewInput{Item: items[0], Page: page, DPI: dpi})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleParsePages handles GET /pages/parse?ranges=&page_count=.
func (h *Handlers) HandleParsePages(w http.ResponseWriter, r *http.Request) {
	pageCount, err := queryInt(r, "page_count", 0)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, ops.ParsePages(ops.ParsePagesInput{
		Ranges:    r.URL.Query().Get("ranges"),
		PageCount: pageCount,
	}))
}

// HandleListJobs handles GET /jobs.
func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		renderError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		renderError(w, err)
		return
	}

	out, err := ops.ListJobs(h.deps.DB, ops.ListInput{
		Kind:   r.URL.Query().Get("kind"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleFetchJob handles GET /jobs/{id}.
func (h *Handlers) HandleFetchJob(w http.ResponseWriter, r *http.Request) {
	out, err := ops.FetchJob(h.deps.DB, r.PathValue("id"))
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandlePurgeJobs handles POST /jobs/purge.
func (h *Handlers) HandlePurgeJobs(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		renderError(w, errors.NewInvalidRequest(`confirm parameter must be "true"`))
		return
	}

	days, err := formInt(r, "older_than_days", 0)
	if err != nil {
		renderError(w, err)
		return
	}
	input := ops.PurgeInput{OlderThanDays: days}
	if k := strings.TrimSpace(r.FormValue("kind")); k != "" {
		input.Kind = &k
	}

	out, err := ops.PurgeJobs(h.deps.DB, input)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"kinds":   h.enabledKinds(),
		"history": h.deps.DB != nil,
	})
}

// HandleIndex handles GET /: a plain page with recent jobs.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{Version: h.version, Kinds: h.enabledKinds(), HistoryEnabled: h.deps.DB != nil}
	if data.HistoryEnabled {
		out, err := ops.ListJobs(h.deps.DB, ops.ListInput{})
		if err != nil {
			renderError(w, err)
			return
		}
		data.Jobs = out.Items
	}
	renderIndex(w, data)
}

func (h *Handlers) enabledKinds() []string {
	kinds := []string{}
	for _, k := range codec.Kinds() {
		if h.deps.Codecs == nil || h.deps.Codecs.Enabled(k) {
			kinds = append(kinds, string(k))
		}
	}
	return kinds
}

// formInt parses an integer form value with a default.
func formInt(r *http.Request, name string, def int) (int, error) {
	return parseInt(name, r.FormValue(name), def)
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) (int, error) {
	return parseInt(name, r.URL.Query().Get(name), def)
}

func parseInt(name, s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewInvalidRequest(name + " must be an integer")
	}
	return v, nil
}
