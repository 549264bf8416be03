package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccessLog(t *testing.T) {
	tests := []struct {
		name          string
		handler       http.HandlerFunc
		expectedCode  float64
		expectedLevel string
		expectedBytes float64
	}{
		{
			name: "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte("created"))
			},
			expectedCode:  201,
			expectedLevel: "INFO",
			expectedBytes: 7,
		},
		{
			name:          "implicit ok",
			handler:       func(w http.ResponseWriter, r *http.Request) {},
			expectedCode:  200,
			expectedLevel: "INFO",
		},
		{
			name: "server error logged at warn",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			expectedCode:  502,
			expectedLevel: "WARN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			w := httptest.NewRecorder()
			AccessLog(logger)(tt.handler).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register", nil))

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("invalid log line %q: %v", buf.String(), err)
			}
			if entry["status"] != tt.expectedCode {
				t.Errorf("status = %v, want %v", entry["status"], tt.expectedCode)
			}
			if entry["level"] != tt.expectedLevel {
				t.Errorf("level = %v, want %v", entry["level"], tt.expectedLevel)
			}
			if entry["bytes"] != tt.expectedBytes {
				t.Errorf("bytes = %v, want %v", entry["bytes"], tt.expectedBytes)
			}
			if entry["path"] != "/register" {
				t.Errorf("path = %v, want /register", entry["path"])
			}
		})
	}
}

func TestStatusRecorder_FirstStatusWins(t *testing.T) {
	rec := &StatusRecorder{ResponseWriter: httptest.NewRecorder()}
	rec.WriteHeader(http.StatusAccepted)
	rec.WriteHeader(http.StatusInternalServerError)

	if rec.Status != http.StatusAccepted {
		t.Errorf("Status = %d, want %d", rec.Status, http.StatusAccepted)
	}
}
