package main

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcolgate/entropycam/internal/detector"
	"github.com/tcolgate/entropycam/internal/frame"
	"github.com/tcolgate/entropycam/internal/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testCam struct {
	mu   sync.Mutex
	n    int
	fail bool
}

func (c *testCam) Capture(ctx context.Context) (*frame.Frame, error) {
	c.mu.Lock()
	n, fail := c.n, c.fail
	c.n++
	c.mu.Unlock()
	if fail {
		return nil, errors.New("lens cap on")
	}

	img := image.NewNRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			v := uint8((n*41 + x*7 + y*3) % 256)
			img.SetNRGBA(x, y, color.NRGBA{v, 255 - v, v / 3, 255})
		}
	}
	f := frame.New(img, time.Now())
	var err error
	f.JPEG, err = frame.EncodeJPEG(f.Image, 75)
	return f, err
}

type testServer struct {
	*server
	reg     *prometheus.Registry
	handler http.Handler
}

func newTestServer(t *testing.T, cam *testCam) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	events := &broadcaster{}
	det := detector.New(cam, events, detector.Options{
		Settle:  5 * time.Millisecond,
		Metrics: metrics.New(reg),
		Logger:  quietLogger(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = det.Close(ctx)
	})

	s := &server{
		det:     det,
		cam:     cam,
		events:  events,
		origins: []string{"http://camera.local"},
		timeout: time.Second,
		log:     quietLogger(),
	}
	ws := newWSHub(det, allowOrigin(s.origins), quietLogger())
	events.Add(ws)
	return &testServer{server: s, reg: reg, handler: s.router(nil, ws, reg)}
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestTake(t *testing.T) {
	ts := newTestServer(t, &testCam{})

	rec := ts.get("/take")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body["src"], frame.DataURIPrefix))
	assert.Equal(t, detector.Idle, ts.det.State(), "take does not start detection")
}

func TestTakeError(t *testing.T) {
	ts := newTestServer(t, &testCam{fail: true})

	rec := ts.get("/take")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "lens cap on")
}

func TestStatusAndLatest(t *testing.T) {
	ts := newTestServer(t, &testCam{})

	rec := ts.get("/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"off","samples":0}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, ts.get("/debug/latest/pic").Code)
	assert.Equal(t, http.StatusNotFound, ts.get("/debug/latest/diff").Code)
	assert.Equal(t, http.StatusNotFound, ts.get("/debug/latest/other").Code)
	assert.Equal(t, http.StatusNotFound, ts.get("/debug/histogram").Code)

	ts.det.Start()
	require.Eventually(t, func() bool {
		_, res := ts.events.Latest()
		return res != nil
	}, 5*time.Second, time.Millisecond)

	rec = ts.get("/status")
	assert.Contains(t, rec.Body.String(), `"state":"on"`)

	for _, kind := range []string{"pic", "diff"} {
		rec := ts.get("/debug/latest/" + kind)
		require.Equal(t, http.StatusOK, rec.Code, kind)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Body.Bytes())
	}

	rec = ts.get("/debug/histogram")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Difference histogram")
}

func TestIndexAndMetrics(t *testing.T) {
	ts := newTestServer(t, &testCam{})

	rec := ts.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "detector running")

	rec = ts.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "entropycam_detector_running")
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, &testCam{})

	req := httptest.NewRequest(http.MethodOptions, "/take", nil)
	req.Header.Set("Origin", "http://camera.local")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://camera.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllowOrigin(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	check := allowOrigin([]string{"http://a"})
	assert.True(t, check(req("")))
	assert.True(t, check(req("http://a")))
	assert.False(t, check(req("http://b")))

	assert.True(t, allowOrigin([]string{"*"})(req("http://b")))
}

func TestBroadcaster(t *testing.T) {
	b := &broadcaster{}
	var got []string
	b.Add(detector.SinkFunc(func(event string, payload interface{}) {
		got = append(got, event)
	}))

	pic := &frame.Frame{JPEG: []byte{1}}
	b.Emit(detector.EventRunning, &detector.Result{Frame: pic})
	p, res := b.Latest()
	assert.Same(t, pic, p)
	assert.Nil(t, res)

	b.Emit(detector.EventStats, struct{}{})
	assert.Equal(t, []string{detector.EventRunning, detector.EventStats}, got)
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg.Event, msg.Data
}

func TestWebsocketDetection(t *testing.T) {
	ts := newTestServer(t, &testCam{})
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("on")))

	var (
		acks    []string
		results []detector.Result
		stats   int
	)
	for len(results) < 3 || stats == 0 {
		event, data := readEvent(t, conn)
		switch event {
		case detector.EventAck:
			var ack detector.Ack
			require.NoError(t, json.Unmarshal(data, &ack))
			acks = append(acks, ack.Data)
		case detector.EventRunning:
			var res detector.Result
			require.NoError(t, json.Unmarshal(data, &res))
			results = append(results, res)
		case detector.EventStats:
			var sum map[string]float64
			require.NoError(t, json.Unmarshal(data, &sum))
			assert.Contains(t, sum, "mean")
			assert.Contains(t, sum, "sample_variance")
			assert.Contains(t, sum, "sample_std_dev")
			stats++
		}
	}

	assert.Equal(t, []string{"on"}, acks)
	assert.NotEmpty(t, results[0].Pic)
	assert.Nil(t, results[0].Entropy)
	assert.Nil(t, results[0].Histogram)
	for _, res := range results[1:] {
		assert.NotEmpty(t, res.DiffImg)
		require.NotNil(t, res.Entropy)
		require.NotNil(t, res.Histogram)
	}

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ts.det.State() == detector.Idle }, 5*time.Second, time.Millisecond)
}

func TestWebsocketRejectsOrigin(t *testing.T) {
	ts := newTestServer(t, &testCam{})
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	hdr := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
