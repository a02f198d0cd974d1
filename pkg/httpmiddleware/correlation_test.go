package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	var capturedHeaderID, capturedContextID string
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedHeaderID = r.Header.Get("X-Correlation-ID")
		capturedContextID = logger.GetCorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := CorrelationID()(testHandler)

	incoming := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"valid client UUID", uuid.New().String()},
		{"invalid value", "not-a-uuid"},
		{"nil UUID", "00000000-0000-0000-0000-000000000000"},
	}

	for _, tc := range incoming {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/generate", nil)
			if tc.header != "" {
				req.Header.Set("X-Correlation-ID", tc.header)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, req)

			if capturedHeaderID == "" || capturedHeaderID == tc.header {
				t.Errorf("Expected a freshly generated correlation ID, got %q", capturedHeaderID)
			}
			if capturedHeaderID != capturedContextID {
				t.Errorf("Header ID (%s) should match context ID (%s)", capturedHeaderID, capturedContextID)
			}
			if got := recorder.Header().Get("X-Correlation-ID"); got != capturedHeaderID {
				t.Errorf("Response header ID (%s) should match request ID (%s)", got, capturedHeaderID)
			}
			if _, err := uuid.Parse(capturedHeaderID); err != nil {
				t.Errorf("Generated correlation ID is not a valid UUID: %s", capturedHeaderID)
			}
		})
	}

	t.Run("generates unique IDs for different requests", func(t *testing.T) {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		id1 := capturedHeaderID
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		id2 := capturedHeaderID

		if id1 == id2 {
			t.Error("Expected different correlation IDs for different requests")
		}
	})
}
