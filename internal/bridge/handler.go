package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/eleven-am/transcribe-stream/internal/audio"
	"github.com/eleven-am/transcribe-stream/transcribe"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SessionStarter opens transcription sessions. Satisfied by
// *transcribe.Client.
type SessionStarter interface {
	StartStreamTranscription(ctx context.Context, req *transcribe.StartStreamTranscriptionRequest) (*transcribe.Session, error)
}

// Config carries the session defaults for browser connections. A client
// may override language and sample rate per connection via query params.
type Config struct {
	Language       string
	SampleRateHz   int
	Encoding       string
	VocabularyName string

	// SourceSampleRateHz is the rate clients actually capture at.
	// Browsers commonly deliver 48kHz; when it differs from
	// SampleRateHz, inbound audio is resampled before transmission.
	SourceSampleRateHz int
}

// Handler bridges browser WebSocket connections onto transcription
// sessions: inbound binary frames become signed audio chunks, transcript
// events come back as JSON text frames.
type Handler struct {
	client SessionStarter
	cfg    Config
	logger *slog.Logger
}

func NewHandler(client SessionStarter, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client: client,
		cfg:    cfg,
		logger: logger.With("handler", "bridge"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/transcribe", h.HandleTranscribe)
}

type outboundMessage struct {
	Type      string                      `json:"type"`
	SessionID string                      `json:"session_id,omitempty"`
	Event     *transcribe.TranscriptEvent `json:"event,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

func (h *Handler) HandleTranscribe(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	connID := uuid.NewString()
	logger := h.logger.With("connection_id", connID)

	req := h.sessionRequest(c)
	session, err := h.client.StartStreamTranscription(c.Request().Context(), req)
	if err != nil {
		logger.Error("start transcription failed", "error", err)
		writeJSON(ws, &sync.Mutex{}, outboundMessage{Type: "error", Error: err.Error()})
		ws.Close()
		return nil
	}
	defer session.Close()

	logger.Info("transcription session opened",
		"session_id", session.Response.SessionID,
		"language", req.LanguageCode,
		"sample_rate", req.MediaSampleRateHertz)

	var writeMu sync.Mutex
	writeJSON(ws, &writeMu, outboundMessage{Type: "ready", SessionID: session.Response.SessionID})

	done := make(chan struct{})
	go h.pumpTranscripts(ws, &writeMu, session, logger, done)

	h.pumpAudio(c.Request().Context(), ws, session, req.MediaSampleRateHertz, logger)

	session.Audio.Close()
	<-done
	ws.Close()
	return nil
}

func (h *Handler) sessionRequest(c echo.Context) *transcribe.StartStreamTranscriptionRequest {
	req := &transcribe.StartStreamTranscriptionRequest{
		LanguageCode:         h.cfg.Language,
		MediaSampleRateHertz: h.cfg.SampleRateHz,
		MediaEncoding:        h.cfg.Encoding,
		VocabularyName:       h.cfg.VocabularyName,
	}
	if v := c.QueryParam("language"); v != "" {
		req.LanguageCode = v
	}
	if v := c.QueryParam("sample_rate"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil {
			req.MediaSampleRateHertz = rate
		}
	}
	return req
}

// pumpAudio forwards inbound binary frames to the session until the
// client disconnects or sends a close.
func (h *Handler) pumpAudio(ctx context.Context, ws *websocket.Conn, session *transcribe.Session, sessionRate int, logger *slog.Logger) {
	ws.SetReadLimit(maxMessageSize)
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if h.cfg.SourceSampleRateHz != 0 && h.cfg.SourceSampleRateHz != sessionRate {
			data = audio.ResamplePCM(data, h.cfg.SourceSampleRateHz, sessionRate)
		}
		if err := session.Audio.Send(ctx, data); err != nil {
			logger.Error("send audio chunk failed", "error", err)
			return
		}
	}
}

// pumpTranscripts relays transcript events to the client until the
// inbound side of the session ends.
func (h *Handler) pumpTranscripts(ws *websocket.Conn, writeMu *sync.Mutex, session *transcribe.Session, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		event, err := session.Transcripts.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Error("transcript stream failed", "error", err)
				writeJSON(ws, writeMu, outboundMessage{Type: "error", Error: err.Error()})
			}
			writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			writeMu.Unlock()
			return
		}
		writeJSON(ws, writeMu, outboundMessage{Type: "transcript", Event: event})
	}
}

func writeJSON(ws *websocket.Conn, mu *sync.Mutex, msg outboundMessage) {
	mu.Lock()
	defer mu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	ws.WriteJSON(msg)
}
