package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tcolgate/entropycam/internal/detector"
)

type server struct {
	det     *detector.Detector
	cam     detector.Capturer
	events  *broadcaster
	origins []string
	timeout time.Duration
	log     *slog.Logger
}

// allowOrigin accepts requests without an Origin header and those whose
// origin is listed. A "*" entry allows everything.
func allowOrigin(origins []string) func(r *http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range origins {
		allowed[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

func (s *server) cors(next http.Handler) http.Handler {
	check := allowOrigin(s.origins)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && check(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// router wires the HTTP surface. socketIO and ws may be nil.
func (s *server) router(socketIO, ws http.Handler, gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/take", s.handleTake).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/debug/latest/{kind}", s.handleLatest).Methods("GET")
	r.HandleFunc("/debug/histogram", s.handleHistogram).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	if socketIO != nil {
		r.PathPrefix("/socket.io/").Handler(socketIO)
	}
	if ws != nil {
		r.Handle("/ws", ws)
	}
	return s.cors(r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page)
}

// handleTake captures a single still, independently of detection.
func (s *server) handleTake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	f, err := s.cam.Capture(ctx)
	if err != nil {
		s.log.Warn("could not capture image", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"src": f.DataURI()})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   s.det.State().String(),
		"samples": s.det.Series().Len(),
	})
}

// handleLatest serves the most recent capture or difference image.
func (s *server) handleLatest(w http.ResponseWriter, r *http.Request) {
	pic, res := s.events.Latest()

	var jpg []byte
	switch mux.Vars(r)["kind"] {
	case "pic":
		if pic != nil {
			jpg = pic.JPEG
		}
	case "diff":
		if res != nil && res.Diff != nil {
			jpg = res.Diff.JPEG
		}
	default:
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	if len(jpg) == 0 {
		http.Error(w, "no image yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(jpg)
}
