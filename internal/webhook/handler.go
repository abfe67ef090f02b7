package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/teemow/pushbox/internal/logging"
)

// Request headers carrying tenant identity and the upstream credential.
const (
	HeaderServerName   = "X-MCP-Name"
	HeaderUpstreamAuth = "X-MCP-Authorization"
)

// maxBodyBytes bounds the accepted envelope size. Push notifications are
// small; anything larger is not a legitimate delivery.
const maxBodyBytes = 1 << 20

// Handler exposes the delivery pipeline as an HTTP endpoint.
type Handler struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewHandler creates the push delivery HTTP handler.
func NewHandler(pipeline *Pipeline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: pipeline, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	delivery := Delivery{
		ID:          uuid.NewString(),
		ServerName:  r.Header.Get(HeaderServerName),
		AccessToken: bearerToken(r.Header.Get(HeaderUpstreamAuth)),
		PushToken:   bearerToken(r.Header.Get("Authorization")),
		Body:        body,
	}

	resp, err := h.pipeline.Process(r.Context(), delivery)
	if err != nil {
		h.writeFailure(w, delivery, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.ReqResponseCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode delivery response",
			slog.String(logging.KeyDelivery, delivery.ID),
			slog.String(logging.KeyError, err.Error()))
	}
}

func (h *Handler) writeFailure(w http.ResponseWriter, d Delivery, err error) {
	status := StatusForError(err)
	switch status {
	case http.StatusUnauthorized:
		// The reason stays in the logs; shared caches must not retain the
		// challenge response.
		w.Header().Set("WWW-Authenticate", `Bearer realm="pushbox", error="invalid_token"`)
		w.Header().Set("Cache-Control", "no-store")
		writeError(w, status, "push token verification failed")
	case http.StatusBadRequest:
		writeError(w, status, errorMessage(err))
	default:
		writeError(w, status, "delivery processing failed, retry later")
	}
}

// errorMessage strips the sentinel prefix so clients see the description,
// not internal error chaining.
func errorMessage(err error) string {
	msg := err.Error()
	if cut, ok := strings.CutPrefix(msg, ErrMalformed.Error()+": "); ok {
		return cut
	}
	return msg
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// bearerToken extracts the token from a "Bearer <token>" header value. The
// scheme compare is case-insensitive; a bare token is accepted as-is.
func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(header)
}
