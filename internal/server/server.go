// Package server exposes transcription and training over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/chaz8081/sphinxasr/internal/audio"
	"github.com/chaz8081/sphinxasr/internal/lm"
	"github.com/chaz8081/sphinxasr/internal/train"
	"github.com/chaz8081/sphinxasr/internal/transcribe"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 20

// Recognizer is the transcriber the server drives.
type Recognizer interface {
	TranscribeWAV(wav []byte) (*transcribe.Transcription, error)
	TranscribeStream(chunks <-chan []byte, format audio.Format) (*transcribe.Transcription, error)
	Reload() error
}

// TrainFunc retrains the decoder artifacts from an intent graph.
type TrainFunc func(ctx context.Context, graph *lm.Graph) (*train.Result, error)

// Server routes HTTP requests to a Recognizer and a TrainFunc.
type Server struct {
	rec      Recognizer
	train    TrainFunc
	format   audio.Format // stream format when the client does not send one
	log      *slog.Logger
	upgrader websocket.Upgrader
	maxBody  int64

	trainMu sync.Mutex
}

// New creates a Server. trainFn may be nil to disable training.
func New(rec Recognizer, trainFn TrainFunc, defaultFormat audio.Format, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		rec:    rec,
		train:  trainFn,
		format:  defaultFormat,
		log:     log,
		maxBody: maxBodyBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/speech-to-text", s.speechToText)
		r.Get("/stream", s.stream)
		r.Post("/train", s.retrain)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
