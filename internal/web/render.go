package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/job"
	"github.com/hpungsan/quire/internal/logfields"
	"github.com/hpungsan/quire/internal/ops"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to temp files.
const multipartMemory = 32 << 20

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes {"error":{code,message,status}}. Foreign errors become
// INTERNAL.
func renderError(w http.ResponseWriter, err error) {
	qErr, ok := errors.As(err)
	if !ok {
		qErr = errors.NewInternal(err)
	}
	if qErr.Status >= 500 {
		slog.Error("Request failed", logfields.Error(err))
	}

	body := map[string]any{
		"code":    string(qErr.Code),
		"message": qErr.Message,
		"status":  qErr.Status,
	}
	if len(qErr.Details) > 0 {
		body["details"] = qErr.Details
	}
	renderJSON(w, qErr.Status, map[string]any{"error": body})
}

// parseUpload parses a multipart body capped at maxBytes.
func parseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes > 0 {
		// Leave room for multipart boundaries and form fields
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.NewTooLarge(maxBytes)
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid multipart form: %v", err))
	}
	return nil
}

// uploadedItems reads the files under the given form fields, in order.
func uploadedItems(r *http.Request, maxBytes int64, fields ...string) ([]batch.InputItem, error) {
	var headers []*multipart.FileHeader
	for _, f := range fields {
		headers = append(headers, r.MultipartForm.File[f]...)
	}
	if len(headers) == 0 {
		return nil, errors.NewValidation(fmt.Sprintf("no files uploaded (field %q)", fields[0]))
	}

	var total int64
	items := make([]batch.InputItem, 0, len(headers))
	for _, fh := range headers {
		total += fh.Size
		if maxBytes > 0 && total > maxBytes {
			return nil, errors.NewTooLarge(maxBytes)
		}
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		items = append(items, batch.NewInputItem(fh.Filename, data, fh.Header.Get("Content-Type")))
	}
	return items, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.NewResource("failed to open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewResource("failed to read upload", err)
	}
	return data, nil
}

// streamResult is the ops.Sink for HTTP: the output file becomes the
// response body.
func streamResult(w http.ResponseWriter) ops.Sink {
	return func(out *ops.TransformOutput) error {
		res := out.Result
		src, err := res.Open()
		if err != nil {
			return err
		}
		defer src.Close()

		h := w.Header()
		h.Set("Content-Type", res.Output.MediaType)
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Output.Name}))
		if res.Output.Size > 0 {
			h.Set("Content-Length", fmt.Sprint(res.Output.Size))
		}
		if out.JobID != "" {
			h.Set("X-Quire-Job-Id", out.JobID)
		}
		if len(out.Skipped) > 0 {
			h.Set("X-Quire-Skipped", strings.Join(out.Skipped, ", "))
		}
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, src); err != nil {
			// Headers are gone; all we can do is log
			slog.Warn("Failed to stream result", logfields.JobID(out.JobID), logfields.Error(err))
		}
		return nil
	}
}

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"formatTime":  formatTime,
	"formatBytes": formatBytes,
}).Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Quire {{.Version}}</title>
<style>body{font-family:sans-serif;margin:2rem}td,th{padding:.2rem .8rem;text-align:left}</style>
</head>
<body>
<h1>Quire</h1>
<p>Transforms: {{range $i, $k := .Kinds}}{{if $i}}, {{end}}<code>{{$k}}</code>{{end}}</p>
{{if .HistoryEnabled}}
<h2>Recent jobs</h2>
<table>
<tr><th>Created</th><th>Kind</th><th>Status</th><th>Inputs</th><th>Output</th><th>Size</th></tr>
{{range .Jobs}}<tr><td>{{formatTime .CreatedAt}}</td><td>{{.Kind}}</td><td>{{.Status}}</td><td>{{.InputCount}}</td><td>{{.OutputName}}</td><td>{{formatBytes .Bytes}}</td></tr>
{{else}}<tr><td colspan="6">No jobs yet</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`))

type indexData struct {
	Version        string
	Kinds          []string
	HistoryEnabled bool
	Jobs           []job.Summary
}

func renderIndex(w http.ResponseWriter, data indexData) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		renderError(w, errors.NewInternal(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// formatTime formats a Unix millisecond timestamp as "2006-01-02 15:04" UTC.
func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

// formatBytes formats a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
