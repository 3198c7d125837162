package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcolgate/entropycam/internal/detector"
)

var sidRe = regexp.MustCompile(`"sid":"([^"]+)"`)

// pollingClient speaks engine.io v3 long-polling with text framing.
type pollingClient struct {
	t    *testing.T
	base string
	sid  string
	http *http.Client
}

func dialPolling(t *testing.T, base string) *pollingClient {
	t.Helper()
	c := &pollingClient{t: t, base: base, http: &http.Client{Timeout: 5 * time.Second}}

	body := c.get(base + "/socket.io/?EIO=3&transport=polling&b64=1")
	m := sidRe.FindStringSubmatch(body)
	require.Len(t, m, 2, "handshake: %q", body)
	c.sid = m[1]
	return c
}

func (c *pollingClient) url() string {
	return c.base + "/socket.io/?EIO=3&transport=polling&b64=1&sid=" + c.sid
}

func (c *pollingClient) get(url string) string {
	c.t.Helper()
	resp, err := c.http.Get(url)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	require.Equal(c.t, http.StatusOK, resp.StatusCode, string(b))
	return string(b)
}

func (c *pollingClient) poll() string {
	c.t.Helper()
	return c.get(c.url())
}

// send posts one packet without waiting for the server to take it; the
// server only finishes reading once replies have been polled.
func (c *pollingClient) send(packet string) <-chan error {
	errc := make(chan error, 1)
	go func() {
		body := fmt.Sprintf("%d:%s", len(packet), packet)
		resp, err := c.http.Post(c.url(), "text/plain;charset=UTF-8", strings.NewReader(body))
		if err == nil {
			resp.Body.Close()
		}
		errc <- err
	}()
	return errc
}

// pollFor polls until a response contains want.
func (c *pollingClient) pollFor(want string) {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		if strings.Contains(c.poll(), want) {
			return
		}
	}
	c.t.Fatalf("no %q after 20 polls", want)
}

func newSocketTest(t *testing.T) (*detector.Detector, *socketio.Server, *socketSink, *httptest.Server) {
	t.Helper()

	events := &broadcaster{}
	det := detector.New(&testCam{}, events, detector.Options{
		Settle: time.Hour,
		Logger: quietLogger(),
	})

	sio := newSocketServer(det, allowOrigin(nil), quietLogger())
	go sio.Serve()
	sink := newSocketSink(sio, quietLogger())
	events.Add(sink)

	s := &server{det: det, cam: &testCam{}, events: events, log: quietLogger()}
	srv := httptest.NewServer(s.router(sio, nil, prometheus.NewRegistry()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = det.Close(ctx)
		sink.Close()
		sio.Close()
	})
	return det, sio, sink, srv
}

func TestSocketMotionCommand(t *testing.T) {
	det, _, _, srv := newSocketTest(t)
	defer srv.Close()

	c := dialPolling(t, srv.URL)
	assert.Contains(t, c.poll(), "40", "namespace connect")

	steps := []struct {
		cmd   string
		ack   string
		state detector.State
	}{
		{cmd: "on", ack: "on", state: detector.Running},
		{cmd: "maybe", ack: "off", state: detector.Idle},
		{cmd: "on", ack: "on", state: detector.Running},
	}
	for _, s := range steps {
		sent := c.send(fmt.Sprintf(`42["motion",%q]`, s.cmd))
		c.pollFor(fmt.Sprintf(`"motion response",{"data":%q}`, s.ack))
		require.NoError(t, <-sent)
		assert.Equal(t, s.state, det.State(), s.cmd)
	}

	// closing the session is a disconnect, which turns detection off
	c.send("1")
	require.Eventually(t, func() bool { return det.State() == detector.Idle }, 5*time.Second, 10*time.Millisecond)
}

func TestSocketSinkDoesNotBlockOnStalledClient(t *testing.T) {
	_, sio, sink, srv := newSocketTest(t)
	defer srv.Close()

	// handshake, then never poll again
	dialPolling(t, srv.URL)
	require.Eventually(t, func() bool { return len(sio.Rooms("/")) > 0 }, 5*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2*sendBuffer+1; i++ {
			sink.Emit(detector.EventRunning, &detector.Result{Pic: "data:image/jpeg;base64,"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a client that is not polling")
	}
}
