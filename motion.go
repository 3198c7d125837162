package main

import (
	"log/slog"
	"net/http"
	"sync"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	eiows "github.com/googollee/go-socket.io/engineio/transport/websocket"

	"github.com/tcolgate/entropycam/internal/detector"
)

// newSocketServer exposes the detector over socket.io. Clients send
// "motion" with "on" or "off" and receive an acknowledgement; every
// connected client receives the detector's events. Any disconnect turns
// detection off.
func newSocketServer(det *detector.Detector, checkOrigin func(*http.Request) bool, log *slog.Logger) *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{CheckOrigin: checkOrigin},
			&eiows.Transport{CheckOrigin: checkOrigin},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext("")
		log.Info("socket.io client connected", "id", s.ID(), "remote", s.RemoteAddr())
		return nil
	})

	server.OnEvent("/", "motion", func(s socketio.Conn, msg string) {
		state := det.Toggle(msg)
		log.Debug("motion command", "id", s.ID(), "command", msg, "state", state)
		s.Emit(detector.EventAck, detector.Ack{Data: state})
	})

	server.OnError("/", func(s socketio.Conn, err error) {
		log.Warn("socket.io error", "error", err)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		det.Toggle(detector.CommandOff)
		log.Info("socket.io client disconnected", "id", s.ID(), "reason", reason)
	})

	return server
}

type socketEvent struct {
	name    string
	payload interface{}
}

// socketSink broadcasts detector events to every socket.io client from its
// own goroutine. go-socket.io blocks a broadcast until each client's
// transport takes the packet, so events are queued and dropped while the
// queue is full.
type socketSink struct {
	server *socketio.Server
	log    *slog.Logger
	queue  chan socketEvent
	done   chan struct{}
	once   sync.Once
}

func newSocketSink(server *socketio.Server, log *slog.Logger) *socketSink {
	s := &socketSink{
		server: server,
		log:    log,
		queue:  make(chan socketEvent, sendBuffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *socketSink) Emit(event string, payload interface{}) {
	select {
	case s.queue <- socketEvent{name: event, payload: payload}:
	default:
		s.log.Debug("socket.io clients too slow, dropping event", "event", event)
	}
}

func (s *socketSink) run() {
	for {
		select {
		case ev := <-s.queue:
			s.server.BroadcastToNamespace("/", ev.name, ev.payload)
		case <-s.done:
			return
		}
	}
}

// Close stops sending. Queued events are discarded.
func (s *socketSink) Close() {
	s.once.Do(func() { close(s.done) })
}
