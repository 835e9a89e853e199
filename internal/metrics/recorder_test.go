package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveTransformDuration("split", time.Second)
	r.IncTransformOutcome("split", OutcomeSingle)
	r.IncItemSkipped("split")
	r.IncWorkspaceOpened()
	r.IncWorkspaceDisposed()
}

func TestOrNoop(t *testing.T) {
	require.IsType(t, NoopRecorder{}, OrNoop(nil))

	pr := NewPrometheusRecorder(nil)
	require.Same(t, pr, OrNoop(pr))
}

func TestPrometheusRecorder_NilReceiver(t *testing.T) {
	var p *PrometheusRecorder
	p.ObserveTransformDuration("split", time.Second)
	p.IncTransformOutcome("split", OutcomeFailed)
	p.IncItemSkipped("split")
	p.IncWorkspaceOpened()
	p.IncWorkspaceDisposed()
}

func TestPrometheusRecorder_ServesMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveTransformDuration("compress", 150*time.Millisecond)
	pr.IncTransformOutcome("compress", OutcomeArchive)
	pr.IncItemSkipped("compress")
	pr.IncWorkspaceOpened()
	pr.IncWorkspaceDisposed()

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	for _, name := range []string{
		"quire_transform_duration_seconds",
		`quire_transform_outcomes_total{kind="compress",outcome="archive"} 1`,
		`quire_items_skipped_total{kind="compress"} 1`,
		"quire_workspaces_opened_total 1",
		"quire_workspaces_disposed_total 1",
	} {
		require.True(t, strings.Contains(text, name), "missing %q in metrics output", name)
	}
}

func TestCountingRecorder(t *testing.T) {
	c := NewCountingRecorder()
	c.IncWorkspaceOpened()
	c.IncWorkspaceDisposed()
	c.IncWorkspaceDisposed()
	c.IncTransformOutcome("split", OutcomeSingle)
	c.IncItemSkipped("merge")
	c.ObserveTransformDuration("split", time.Millisecond)

	require.Equal(t, 1, c.Opened())
	require.Equal(t, 2, c.Disposed())
	require.Equal(t, 1, c.Outcome("split", OutcomeSingle))
	require.Equal(t, 0, c.Outcome("split", OutcomeArchive))
	require.Equal(t, 1, c.SkippedFor("merge"))
}
