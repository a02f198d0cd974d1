package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/gemini_relay/internal/generator"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// stubGenerator records calls and replays a canned result.
type stubGenerator struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    int
	messages []string
}

func (s *stubGenerator) Generate(_ context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.messages = append(s.messages, message)
	return s.text, s.err
}

func serve(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec, decoded
}

func TestGenerate_Success(t *testing.T) {
	gen := &stubGenerator{text: "hi there"}
	h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

	rec, body := serve(t, h, `{"message":"hello"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"response": "hi there"}, body)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, []string{"hello"}, gen.messages)
}

func TestGenerate_ExtraKeysIgnored(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

	rec, _ := serve(t, h, `{"message":"hello","temperature":2,"history":[]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"hello"}, gen.messages)
}

func TestGenerate_MessageRequired(t *testing.T) {
	for name, body := range map[string]string{
		"empty object": `{}`,
		"empty string": `{"message":""}`,
		"null message": `{"message":null}`,
		"other keys":   `{"prompt":"hello"}`,
	} {
		t.Run(name, func(t *testing.T) {
			gen := &stubGenerator{text: "unused"}
			h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

			rec, decoded := serve(t, h, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"error": "Message is required"}, decoded)
			assert.Equal(t, 0, gen.calls)
		})
	}
}

func TestGenerate_InvalidJSON(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `message=hello`,
		"truncated":      `{"message":"hel`,
		"empty body":     ``,
		"number message": `{"message":42}`,
		"array body":     `["hello"]`,
		"two values":     `{"message":"hi"} {"message":"second"}`,
		"trailing junk":  `{"message":"hi"} garbage`,
		"trailing brace": `{"message":"hi"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			gen := &stubGenerator{}
			h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

			rec, decoded := serve(t, h, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"error": "Invalid JSON body"}, decoded)
			assert.Equal(t, 0, gen.calls)
		})
	}
}

func TestGenerate_TrailingWhitespaceAccepted(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

	rec, body := serve(t, h, "{\"message\":\"hi\"}\n \t\n")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"response": "ok"}, body)
	assert.Equal(t, 1, gen.calls)
}

func TestGenerate_BodyTooLarge(t *testing.T) {
	gen := &stubGenerator{}
	h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{MaxRequestSize: 32})

	rec, decoded := serve(t, h, `{"message":"`+strings.Repeat("a", 64)+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", decoded["error"])
	assert.Equal(t, 0, gen.calls)
}

func TestGenerate_ProviderFailure(t *testing.T) {
	networkErr := &generator.Error{Kind: generator.KindTransport, Op: "test", Err: errors.New("dial tcp: connection refused")}

	t.Run("details exposed", func(t *testing.T) {
		gen := &stubGenerator{err: networkErr}
		h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

		rec, decoded := serve(t, h, `{"message":"x"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, map[string]any{"error": "dial tcp: connection refused"}, decoded)
		assert.NotContains(t, decoded, "response")
		assert.Equal(t, 1, gen.calls)
	})

	t.Run("details hidden", func(t *testing.T) {
		gen := &stubGenerator{err: networkErr}
		h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{HideErrorDetails: true})

		rec, decoded := serve(t, h, `{"message":"x"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, map[string]any{"error": "Failed to generate content"}, decoded)
	})

	t.Run("untagged error", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("something odd")}
		h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

		rec, decoded := serve(t, h, `{"message":"x"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "something odd", decoded["error"])
	})

	t.Run("validation error from generator", func(t *testing.T) {
		gen := &stubGenerator{err: &generator.Error{Kind: generator.KindValidation, Err: errors.New("message is required")}}
		h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

		rec, _ := serve(t, h, `{"message":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGenerate_WhitespaceMessageIsForwarded(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

	rec, _ := serve(t, h, `{"message":"   "}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"   "}, gen.messages)
}

func TestGenerate_PassesRequestContext(t *testing.T) {
	type ctxKey struct{}
	var seen any
	gen := generator.Func(func(ctx context.Context, _ string) (string, error) {
		seen = ctx.Value(ctxKey{})
		return "ok", nil
	})
	h := NewGenerateHandler(gen, logger.NewNopLogger(), Options{})

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"message":"hi"}`))
	req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "marker"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "marker", seen)
}
