package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/metrics"
)

// maxChatBodySize bounds a chat payload, inline image included (10MB).
const maxChatBodySize = 10 << 20

const (
	transportHTTP = "http"
	transportWS   = "ws"
)

// Handler serves chat turns over HTTP and WebSocket.
type Handler struct {
	svc            *Service
	limiter        *RateLimiter
	metrics        *metrics.Metrics
	originPatterns []string
}

// NewHandler creates a chat handler. allowedOrigins feeds the WebSocket origin check;
// "*" or an empty list accepts any origin.
func NewHandler(svc *Service, cfg Config, m *metrics.Metrics, allowedOrigins []string) *Handler {
	patterns := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		// Patterns are matched against the origin host.
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		patterns = append(patterns, o)
	}
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	return &Handler{
		svc:            svc,
		limiter:        NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		metrics:        m,
		originPatterns: patterns,
	}
}

// RegisterRoutes registers the chat routes on r, which is expected to be mounted at /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.HandleChat)
	r.Get("/ws/chat", h.HandleWebSocket)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.limiter.Close()
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "requisição muito grande")
			return
		}
		writeDetail(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	slog.Info("Chat request",
		"profile_id", req.ProfileID,
		"session_id", req.SessionID,
		"subject", req.Subject,
		"message_length", len(req.Message),
		"has_image", req.ImageBase64 != "",
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)

	resp, status, detail := h.turn(r.Context(), req, transportHTTP)
	if resp == nil {
		writeDetail(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleWebSocket handles GET /api/ws/chat. Each text frame carries a ChatRequest
// and is answered with a ChatResponse or an {"error": ...} frame.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()
	ws.SetReadLimit(maxChatBodySize)

	h.metrics.WebSocketOpened()
	defer h.metrics.WebSocketClosed()

	ctx := r.Context()
	slog.Info("Chat WebSocket connected", "ip", r.RemoteAddr)

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}
		h.metrics.WebSocketFrame("inbound")

		var reply any
		var req ChatRequest
		if typ != websocket.MessageText {
			reply = wsError{Error: "esperado quadro de texto JSON"}
		} else if err := json.Unmarshal(data, &req); err != nil {
			reply = wsError{Error: "corpo da requisição inválido"}
		} else if resp, _, detail := h.turn(ctx, req, transportWS); resp != nil {
			reply = resp
		} else {
			reply = wsError{Error: detail}
		}

		if err := wsjson.Write(ctx, ws, reply); err != nil {
			slog.Debug("WebSocket write error", "error", err)
			return
		}
		h.metrics.WebSocketFrame("outbound")
	}
}

type wsError struct {
	Error string `json:"error"`
}

// turn runs one chat turn and maps failures to a status and a student-facing detail.
func (h *Handler) turn(ctx context.Context, req ChatRequest, transport string) (*ChatResponse, int, string) {
	if err := req.Validate(); err != nil {
		return nil, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")
	}
	if !h.limiter.Allow(req.ProfileID) {
		return nil, http.StatusTooManyRequests, "muitas mensagens, aguarde um momento"
	}

	start := time.Now()
	resp, err := h.svc.Chat(ctx, req)
	switch {
	case err == nil:
		h.metrics.ObserveChat(transport, req.ImageBase64 != "", time.Since(start))
		return resp, http.StatusOK, ""
	case errors.Is(err, domain.ErrProfileNotFound):
		return nil, http.StatusNotFound, "Perfil não encontrado"
	case errors.Is(err, domain.ErrInvalidInput):
		return nil, http.StatusBadRequest, err.Error()
	default:
		slog.Error("Chat turn failed",
			"profile_id", req.ProfileID,
			"session_id", req.SessionID,
			"transport", transport,
			"error", err,
		)
		return nil, http.StatusInternalServerError, "erro interno"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
