package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/chaz8081/sphinxasr/internal/lm"
	"github.com/chaz8081/sphinxasr/internal/train"
	"github.com/chaz8081/sphinxasr/internal/transcribe"
)

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// speechToText transcribes a WAV request body. An utterance with no
// hypothesis gets 204 No Content.
func (s *Server) speechToText(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, fmt.Errorf("reading body: %w", err))
		return
	}

	result, err := s.rec.TranscribeWAV(body)
	switch {
	case errors.Is(err, transcribe.ErrInvalidWAV):
		writeError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, transcribe.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.log.Error("transcription failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// retrain rebuilds the dictionary and language model from the intent graph
// in the request body, then reloads the decoder. Only one run may be in
// progress.
func (s *Server) retrain(w http.ResponseWriter, r *http.Request) {
	if s.train == nil {
		writeError(w, http.StatusNotImplemented, errors.New("training is not configured"))
		return
	}
	if !s.trainMu.TryLock() {
		writeError(w, http.StatusConflict, errors.New("training already in progress"))
		return
	}
	defer s.trainMu.Unlock()

	graph, err := lm.ParseGraph(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.train(r.Context(), graph)
	switch {
	case errors.Is(err, train.ErrEmptyVocabulary):
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		s.log.Error("training failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.rec.Reload(); err != nil {
		s.log.Error("reloading decoder failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  result.RunID,
		"words":   result.Words,
		"guessed": result.Guessed,
		"missing": result.Missing,
	})
}
