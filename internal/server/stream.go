package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chaz8081/sphinxasr/internal/transcribe"
)

const (
	// endMessage is the text frame that ends an utterance.
	endMessage = "end"

	streamIdleTimeout = 60 * time.Second
)

type streamResult struct {
	tr  *transcribe.Transcription
	err error
}

// stream transcribes PCM sent over a websocket. The client may first send a
// JSON text frame with the audio format, then binary frames of raw PCM, then
// the text frame "end". The reply is one text frame holding the
// transcription JSON, "null" when nothing was recognized, or an error
// object.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := s.log.With("session", uuid.NewString())
	log.Debug("stream opened", "remote", r.RemoteAddr)

	format := s.format
	var (
		first []byte
		ended bool
	)

	_ = conn.SetReadDeadline(time.Now().Add(streamIdleTimeout))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		log.Debug("stream closed before audio", "error", err)
		return
	}
	switch {
	case msgType == websocket.BinaryMessage:
		first = data
	case string(data) == endMessage:
		ended = true
	default:
		if err := json.Unmarshal(data, &format); err != nil {
			s.replyError(conn, err)
			return
		}
		log.Debug("stream format", "sample_rate", format.SampleRate, "sample_width", format.SampleWidth, "channels", format.Channels)
	}

	chunks := make(chan []byte, 64)
	done := make(chan streamResult, 1)
	go func() {
		tr, err := s.rec.TranscribeStream(chunks, format)
		done <- streamResult{tr, err}
	}()

	if first != nil {
		chunks <- first
	}
	if !ended {
		s.pump(conn, chunks, log)
	}
	close(chunks)

	res := <-done
	if res.err != nil {
		log.Warn("stream transcription failed", "error", res.err)
		s.replyError(conn, res.err)
		return
	}

	reply, err := json.Marshal(res.tr)
	if err != nil {
		s.replyError(conn, err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
		log.Debug("writing stream result failed", "error", err)
	}
}

// pump forwards binary frames to chunks until "end" or a read error.
func (s *Server) pump(conn *websocket.Conn, chunks chan<- []byte, log *slog.Logger) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamIdleTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("stream read ended", "error", err)
			return
		}
		if msgType == websocket.TextMessage {
			if string(data) == endMessage {
				return
			}
			continue
		}
		chunks <- data
	}
}

func (s *Server) replyError(conn *websocket.Conn, err error) {
	msg, _ := json.Marshal(map[string]string{"error": err.Error()})
	_ = conn.WriteMessage(websocket.TextMessage, msg)
}
