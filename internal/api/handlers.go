package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"portfolio.admin/internal/auth"
	"portfolio.admin/internal/content"
	"portfolio.admin/internal/generate"
	"portfolio.admin/internal/models"
	"portfolio.admin/internal/objectstore"
	"portfolio.admin/internal/proxy"
	"portfolio.admin/internal/ratelimit"
	"portfolio.admin/internal/store"
)

const maxBodyBytes = 1 << 20

// ObjectReader serves stored objects back over HTTP. Only the memory
// object store needs this; S3 objects are fetched from the bucket.
type ObjectReader interface {
	Get(ctx context.Context, key string) (*objectstore.Object, error)
}

type Handler struct {
	auth    *auth.Verifier
	proxy   *proxy.Proxy
	gen     *generate.Gateway
	content *content.Reader
	objects ObjectReader
	limiter ratelimit.Limiter
	logger  *slog.Logger
}

type Deps struct {
	Auth    *auth.Verifier
	Proxy   *proxy.Proxy
	Gateway *generate.Gateway
	Content *content.Reader
	Objects ObjectReader // optional
	// APILimiter caps requests per client on the API groups. Nil disables it.
	APILimiter ratelimit.Limiter
	Logger     *slog.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		auth:    d.Auth,
		proxy:   d.Proxy,
		gen:     d.Gateway,
		content: d.Content,
		objects: d.Objects,
		limiter: d.APILimiter,
		logger:  d.Logger.With("component", "api"),
	}
}

type AuthRequest struct {
	Action string `json:"action"`
	Secret string `json:"secret,omitempty"`
	Token  string `json:"token,omitempty"`
}

type AuthResponse struct {
	Valid     bool       `json:"valid"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type DataRequest struct {
	Action string         `json:"action"`
	Table  string         `json:"table"`
	ID     string         `json:"id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Secret string         `json:"secret,omitempty"`
	Token  string         `json:"token,omitempty"`
}

type TextRequest struct {
	models.TextRequest
	Secret string `json:"secret,omitempty"`
	Token  string `json:"token,omitempty"`
}

type ImageRequest struct {
	models.ImageRequest
	Secret string `json:"secret,omitempty"`
	Token  string `json:"token,omitempty"`
}

type DataResponse struct {
	Data any `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AdminAuth handles verify, refresh and logout.
func (h *Handler) AdminAuth(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	switch req.Action {
	case "", "verify":
		if req.Secret == "" && req.Token == "" {
			req.Token = bearerToken(r)
		}
		if req.Secret != "" || req.Token == "" {
			grant, err := h.auth.Login(ctx, req.Secret)
			if err != nil {
				h.handleError(w, r, err)
				return
			}
			if grant == nil {
				writeJSON(w, http.StatusOK, AuthResponse{Valid: false})
				return
			}
			resp := AuthResponse{Valid: true, Token: grant.Token}
			if !grant.ExpiresAt.IsZero() {
				resp.ExpiresAt = &grant.ExpiresAt
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		_, err := h.auth.Authorize(ctx, auth.Credentials{Token: req.Token})
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			writeJSON(w, http.StatusOK, AuthResponse{Valid: false})
		case err != nil:
			h.handleError(w, r, err)
		default:
			writeJSON(w, http.StatusOK, AuthResponse{Valid: true})
		}

	case "refresh":
		token := req.Token
		if token == "" {
			token = bearerToken(r)
		}
		grant, err := h.auth.Refresh(ctx, token)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AuthResponse{Valid: true, Token: grant.Token, ExpiresAt: &grant.ExpiresAt})

	case "logout":
		token := req.Token
		if token == "" {
			token = bearerToken(r)
		}
		if err := h.auth.Logout(ctx, token); err != nil {
			h.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		writeError(w, http.StatusBadRequest, "invalid action")
	}
}

// AdminData runs one Data Proxy call.
func (h *Handler) AdminData(w http.ResponseWriter, r *http.Request) {
	var req DataRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.proxy.Execute(r.Context(), proxy.Request{
		Action:      proxy.Action(req.Action),
		Table:       req.Table,
		ID:          req.ID,
		Data:        req.Data,
		Credentials: credentials(r, req.Secret, req.Token),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: result})
}

func (h *Handler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.gen.GenerateText(r.Context(), credentials(r, req.Secret, req.Token), req.TextRequest)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.gen.GenerateImage(r.Context(), credentials(r, req.Secret, req.Token), req.ImageRequest)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	recs, err := h.content.List(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = rec.Flatten()
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: out})
}

func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	rec, err := h.content.Get(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: rec.Flatten()})
}

func (h *Handler) VerseOfTheDay(w http.ResponseWriter, r *http.Request) {
	rec, err := h.content.VerseOfTheDay(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: rec.Flatten()})
}

// Object serves an object from the memory object store.
func (h *Handler) Object(w http.ResponseWriter, r *http.Request) {
	obj, err := h.objects.Get(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Body)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	return true
}

// handleError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a bare 500.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrNotConfigured), errors.Is(err, generate.ErrNotConfigured):
		h.logger.ErrorContext(r.Context(), "endpoint not configured", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "server not configured")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, proxy.ErrInvalidResource):
		writeError(w, http.StatusBadRequest, "invalid table")
	case errors.Is(err, proxy.ErrInvalidAction), errors.Is(err, generate.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid action")
	case errors.Is(err, proxy.ErrValidation), errors.Is(err, generate.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, content.ErrNotPublic), errors.Is(err, store.ErrUnknownTable):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, content.ErrNoVerse):
		writeError(w, http.StatusNotFound, "no verse available")
	case errors.Is(err, generate.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	case errors.Is(err, generate.ErrUpstreamRateLimited):
		writeError(w, http.StatusTooManyRequests, "AI service is rate limited, try again later")
	case errors.Is(err, generate.ErrQuotaExhausted):
		writeError(w, http.StatusPaymentRequired, "AI credits exhausted")
	case errors.Is(err, generate.ErrUpstream):
		writeError(w, http.StatusInternalServerError, "AI service error")
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func credentials(r *http.Request, secret, token string) auth.Credentials {
	if secret == "" && token == "" {
		token = bearerToken(r)
	}
	return auth.Credentials{Secret: secret, Token: token}
}

func bearerToken(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
