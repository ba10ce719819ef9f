package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio.admin/config"
	"portfolio.admin/internal/auth"
	"portfolio.admin/internal/content"
	"portfolio.admin/internal/generate"
	"portfolio.admin/internal/logging"
	"portfolio.admin/internal/objectstore"
	"portfolio.admin/internal/proxy"
	"portfolio.admin/internal/ratelimit"
	"portfolio.admin/internal/schema"
	"portfolio.admin/internal/store"
)

const testSecret = "correct horse battery staple"

type testEnv struct {
	server   *httptest.Server
	upstream *httptest.Server

	mu    sync.Mutex
	reply http.HandlerFunc
}

func (e *testEnv) setReply(fn http.HandlerFunc) {
	e.mu.Lock()
	e.reply = fn
	e.mu.Unlock()
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	return newTestEnvWith(t, secret, nil, config.Default())
}

func newTestEnvWith(t *testing.T, secret string, apiLimiter ratelimit.Limiter, cfg *config.Config) *testEnv {
	t.Helper()
	env := &testEnv{}
	env.setReply(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"generated copy"}}]}`))
	})
	env.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		reply := env.reply
		env.mu.Unlock()
		reply(w, r)
	}))
	t.Cleanup(env.upstream.Close)

	logger := logging.Discard()

	var tokens *auth.TokenIssuer
	if secret != "" {
		var err error
		tokens, err = auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), 30*time.Minute, auth.NewMemoryRevoker())
		require.NoError(t, err)
	}
	verifier := auth.NewVerifier(secret, tokens, logger)
	st := store.NewMemoryStore(schema.Names())
	objects := objectstore.NewMemoryStore("http://localhost/storage")

	h := NewHandler(Deps{
		Auth:  verifier,
		Proxy: proxy.New(verifier, st, logger),
		Gateway: generate.NewGateway(generate.Options{
			Auth:      verifier,
			Completer: generate.NewHTTPCompleter(env.upstream.URL, "key", 5*time.Second),
			Objects:   objects,
			Limiter:   ratelimit.NewMemoryLimiter(20, time.Minute),
			Logger:    logger,
		}),
		Content:    content.NewReader(st),
		Objects:    objects,
		APILimiter: apiLimiter,
		Logger:     logger,
	})
	env.server = httptest.NewServer(SetupRouter(h, cfg, logger))
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testSecret)
	status, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, testSecret)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/functions/v1/admin-data", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://portfolio.example")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Content-Type")
}

func TestAdminAuthVerify(t *testing.T) {
	env := newTestEnv(t, testSecret)

	status, body := env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "verify", "secret": testSecret})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["expires_at"])

	for _, wrong := range []string{"Correct horse battery staple", testSecret + " ", " " + testSecret, "x"} {
		status, body = env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "verify", "secret": wrong})
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, body["valid"], wrong)
		assert.Nil(t, body["token"])
	}

	for _, body := range []map[string]string{
		{"action": "verify", "secret": ""},
		{"action": "verify"},
	} {
		status, got := env.post(t, "/functions/v1/admin-auth", body)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, got["valid"])
		assert.Nil(t, got["token"])
	}

	status, _ = env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "reset", "secret": testSecret})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminAuthNotConfigured(t *testing.T) {
	env := newTestEnv(t, "")

	status, body := env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "verify", "secret": "anything"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "server not configured", body["error"])

	status, body = env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "verify", "secret": ""})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "server not configured", body["error"])

	status, _ = env.post(t, "/functions/v1/admin-data", map[string]string{"action": "list", "table": "projects", "secret": "anything"})
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestTokenLifecycle(t *testing.T) {
	env := newTestEnv(t, testSecret)

	_, body := env.post(t, "/functions/v1/admin-auth", map[string]string{"secret": testSecret})
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	status, body := env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "verify", "token": token})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])

	status, _ = env.post(t, "/functions/v1/admin-data", map[string]string{"action": "list", "table": "projects", "token": token})
	assert.Equal(t, http.StatusOK, status)

	status, body = env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "refresh", "token": token})
	require.Equal(t, http.StatusOK, status)
	refreshed := body["token"].(string)
	assert.NotEqual(t, token, refreshed)

	_, body = env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "verify", "token": token})
	assert.Equal(t, false, body["valid"], "refresh revokes the old token")
	token = refreshed

	status, _ = env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "logout", "token": token})
	assert.Equal(t, http.StatusOK, status)

	_, body = env.post(t, "/functions/v1/admin-auth", map[string]string{"action": "verify", "token": token})
	assert.Equal(t, false, body["valid"])

	status, _ = env.post(t, "/functions/v1/admin-data", map[string]string{"action": "list", "table": "projects", "token": token})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBearerHeader(t *testing.T) {
	env := newTestEnv(t, testSecret)
	_, body := env.post(t, "/functions/v1/admin-auth", map[string]string{"secret": testSecret})
	token := body["token"].(string)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/functions/v1/admin-data",
		strings.NewReader(`{"action":"list","table":"books"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminDataEndToEnd(t *testing.T) {
	env := newTestEnv(t, testSecret)
	call := func(body map[string]any) (int, map[string]any) {
		body["secret"] = testSecret
		return env.post(t, "/functions/v1/admin-data", body)
	}

	status, body := call(map[string]any{"action": "create", "table": "projects", "data": map[string]any{"title": "X"}})
	require.Equal(t, http.StatusOK, status)
	created := body["data"].(map[string]any)
	id := created["id"].(string)
	assert.NotEmpty(t, id)
	assert.NotEmpty(t, created["created_at"])

	status, body = call(map[string]any{"action": "list", "table": "projects"})
	require.Equal(t, http.StatusOK, status)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].(map[string]any)["id"])

	status, _ = call(map[string]any{"action": "delete", "table": "projects", "id": id})
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(map[string]any{"action": "get", "table": "projects", "id": id})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminDataErrors(t *testing.T) {
	env := newTestEnv(t, testSecret)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"wrong secret", map[string]any{"action": "list", "table": "projects", "secret": "nope"}, http.StatusUnauthorized},
		{"no credentials", map[string]any{"action": "list", "table": "projects"}, http.StatusUnauthorized},
		{"unknown table", map[string]any{"action": "list", "table": "users", "secret": testSecret}, http.StatusBadRequest},
		{"unknown action", map[string]any{"action": "drop", "table": "projects", "secret": testSecret}, http.StatusBadRequest},
		{"missing id", map[string]any{"action": "get", "table": "projects", "secret": testSecret}, http.StatusBadRequest},
		{"schema violation", map[string]any{"action": "create", "table": "projects", "data": map[string]any{"owner": "me"}, "secret": testSecret}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.post(t, "/functions/v1/admin-data", tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestJSONOnly(t *testing.T) {
	env := newTestEnv(t, testSecret)
	resp, err := http.Post(env.server.URL+"/functions/v1/admin-data", "text/plain", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t, testSecret)
	resp, err := http.Post(env.server.URL+"/functions/v1/admin-data", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateContent(t *testing.T) {
	env := newTestEnv(t, testSecret)

	status, body := env.post(t, "/functions/v1/generate-content", map[string]any{
		"action": "improve_bio", "content": "I build things.", "secret": testSecret,
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "generated copy", body["text"])

	status, _ = env.post(t, "/functions/v1/generate-content", map[string]any{
		"action": "improve_bio", "content": "x", "secret": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.post(t, "/functions/v1/generate-content", map[string]any{
		"action": "write_poem", "content": "x", "secret": testSecret,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.post(t, "/functions/v1/generate-content", map[string]any{
		"action": "expand", "content": strings.Repeat("a", 10001), "secret": testSecret,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGenerateContentRateLimit(t *testing.T) {
	env := newTestEnv(t, testSecret)
	body := map[string]any{"action": "fix_grammar", "content": "x", "secret": testSecret}

	for i := 0; i < 20; i++ {
		status, _ := env.post(t, "/functions/v1/generate-content", body)
		require.Equal(t, http.StatusOK, status, "call %d", i+1)
	}
	status, resp := env.post(t, "/functions/v1/generate-content", body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, resp["error"], "rate limit")
}

func TestGenerateContentUpstreamStatuses(t *testing.T) {
	env := newTestEnv(t, testSecret)
	body := map[string]any{"action": "shorten", "content": "x", "secret": testSecret}

	tests := []struct {
		upstream int
		want     int
	}{
		{http.StatusTooManyRequests, http.StatusTooManyRequests},
		{http.StatusPaymentRequired, http.StatusPaymentRequired},
		{http.StatusBadGateway, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code := tt.upstream
		env.setReply(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "raw upstream detail", code)
		})
		status, resp := env.post(t, "/functions/v1/generate-content", body)
		assert.Equal(t, tt.want, status)
		assert.NotContains(t, resp["error"], "raw upstream detail")
	}
}

func TestGenerateThumbnail(t *testing.T) {
	env := newTestEnv(t, testSecret)
	img := base64.StdEncoding.EncodeToString([]byte("fake-png"))
	env.setReply(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","images":[{"image_url":{"url":"data:image/png;base64,` + img + `"}}]}}]}`))
	})

	status, body := env.post(t, "/functions/v1/generate-thumbnail", map[string]any{
		"title": "My Project", "style": "vibrant", "type": "course", "secret": testSecret,
	})
	require.Equal(t, http.StatusOK, status)
	url := body["url"].(string)
	assert.True(t, strings.HasPrefix(url, "http://localhost/storage/thumbnails/"))

	resp, err := http.Get(env.server.URL + "/storage/" + strings.TrimPrefix(url, "http://localhost/storage/"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	status, _ = env.post(t, "/functions/v1/generate-thumbnail", map[string]any{
		"title": "My Project", "style": "grunge", "secret": testSecret,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPublicContent(t *testing.T) {
	env := newTestEnv(t, testSecret)

	_, body := env.post(t, "/functions/v1/admin-data", map[string]any{
		"action": "create", "table": "books", "secret": testSecret,
		"data": map[string]any{"title": "SICP", "author": "Abelson"},
	})
	id := body["data"].(map[string]any)["id"].(string)

	status, body := env.get(t, "/api/content/books")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = env.get(t, "/api/content/books/"+id)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SICP", body["data"].(map[string]any)["title"])

	status, _ = env.get(t, "/api/content/verse_settings")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.get(t, "/api/content/books/missing")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.get(t, "/api/verse-of-the-day")
	assert.Equal(t, http.StatusNotFound, status)

	env.post(t, "/functions/v1/admin-data", map[string]any{
		"action": "create", "table": "verses", "secret": testSecret,
		"data": map[string]any{"reference": "Psalm 23:1", "text": "The Lord is my shepherd"},
	})
	status, body = env.get(t, "/api/verse-of-the-day")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Psalm 23:1", body["data"].(map[string]any)["reference"])
}

func TestAPILimiterScope(t *testing.T) {
	env := newTestEnvWith(t, testSecret, ratelimit.NewMemoryLimiter(1, time.Minute), config.Default())

	status, _ := env.get(t, "/api/content/projects")
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.get(t, "/api/content/projects")
	assert.Equal(t, http.StatusTooManyRequests, status)
	status, _ = env.post(t, "/functions/v1/admin-auth", map[string]string{"secret": testSecret})
	assert.Equal(t, http.StatusTooManyRequests, status)

	for range 3 {
		status, _ = env.get(t, "/health")
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestAPILimiterIgnoresForwardedHeadersByDefault(t *testing.T) {
	env := newTestEnvWith(t, testSecret, ratelimit.NewMemoryLimiter(1, time.Minute), config.Default())

	codes := make([]int, 0, 5)
	for i := range 5 {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/content/projects", nil)
		require.NoError(t, err)
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i+1))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 429, 429, 429, 429}, codes)
}

func TestAPILimiterTrustsForwardedHeadersWhenConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Server.TrustProxy = true
	env := newTestEnvWith(t, testSecret, ratelimit.NewMemoryLimiter(1, time.Minute), cfg)

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/content/projects", nil)
		require.NoError(t, err)
		req.Header.Set("X-Real-IP", ip)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, ip)
	}
}
