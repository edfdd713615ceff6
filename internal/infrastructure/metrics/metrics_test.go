package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder() *Recorder {
	return NewRecorder(prometheus.Labels{"model": "TwoView", "dataset": "toy"})
}

func TestRecorder_ObserveEpoch(t *testing.T) {
	r := newRecorder()
	r.ObserveEpoch(0, 2.5, 0.01, 10*time.Millisecond)
	r.ObserveEpoch(1, 1.5, 0.001, 20*time.Millisecond)

	assert.Equal(t, 1.5, testutil.ToFloat64(r.loss))
	assert.Equal(t, 0.001, testutil.ToFloat64(r.lr))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.epoch))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.epochs))
	assert.Equal(t, 1, testutil.CollectAndCount(r.epochDuration))
}

func TestRecorder_Checkpoints(t *testing.T) {
	r := newRecorder()
	r.CheckpointSaved("milestone")
	r.CheckpointSaved("best")
	r.CheckpointSaved("best")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.checkpoints.WithLabelValues("milestone")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.checkpoints.WithLabelValues("best")))
}

func TestRecorder_ProbeAndScalars(t *testing.T) {
	r := newRecorder()
	r.ObserveProbe(50, 0.8, 0.7)
	r.AddScalar("training loss", 3.25, 4)

	expected := `
# HELP gclflow_probe_f1 Linear-probe test F1 per evaluation milestone.
# TYPE gclflow_probe_f1 gauge
gclflow_probe_f1{average="macro",dataset="toy",milestone="50",model="TwoView"} 0.7
gclflow_probe_f1{average="micro",dataset="toy",milestone="50",model="TwoView"} 0.8
`
	require.NoError(t, testutil.CollectAndCompare(r.probeF1, strings.NewReader(expected)))
	assert.Equal(t, 3.25, testutil.ToFloat64(r.scalars.WithLabelValues("training loss")))
}

func TestHandler(t *testing.T) {
	r := newRecorder()
	r.ObserveEpoch(3, 0.5, 0.01, time.Millisecond)
	srv := httptest.NewServer(Handler(r.Registry()))
	defer srv.Close()

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/", http.StatusOK, "gclflow is running"},
		{"/healthz", http.StatusOK, "ok"},
		{"/metrics", http.StatusOK, `gclflow_training_loss{dataset="toy",model="TwoView"} 0.5`},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	r := newRecorder()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	s := NewServer(ln.Addr().String(), r.Registry(), nil)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunBadAddr(t *testing.T) {
	s := NewServer("256.0.0.1:bad", newRecorder().Registry(), nil)
	assert.Error(t, s.Run(context.Background()))
}
