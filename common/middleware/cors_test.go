package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	base := CORSConfig{
		AllowedOrigins:   []string{"http://localhost:5173", "*.inventra.test"},
		AllowedMethods:   []string{"GET", "POST", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	}

	tests := []struct {
		name            string
		config          CORSConfig
		origin          string
		method          string
		preflight       bool
		expectedOrigin  string
		expectedStatus  int
		expectedMethods string
		expectedMaxAge  string
	}{
		{
			name:           "exact origin match",
			config:         base,
			origin:         "http://localhost:5173",
			method:         http.MethodGet,
			expectedOrigin: "http://localhost:5173",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wildcard subdomain match",
			config:         base,
			origin:         "https://app.inventra.test",
			method:         http.MethodGet,
			expectedOrigin: "https://app.inventra.test",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "disallowed origin passes through untagged",
			config:         base,
			origin:         "https://evil.example",
			method:         http.MethodGet,
			expectedOrigin: "",
			expectedStatus: http.StatusOK,
		},
		{
			name:            "preflight from allowed origin",
			config:          base,
			origin:          "http://localhost:5173",
			method:          http.MethodOptions,
			preflight:       true,
			expectedOrigin:  "http://localhost:5173",
			expectedStatus:  http.StatusNoContent,
			expectedMethods: "GET, POST, PATCH",
			expectedMaxAge:  "600",
		},
		{
			name:           "preflight from disallowed origin",
			config:         base,
			origin:         "https://evil.example",
			method:         http.MethodOptions,
			preflight:      true,
			expectedOrigin: "",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "star allows any origin",
			config:         CORSConfig{AllowedOrigins: []string{"*"}},
			origin:         "https://anything.example",
			method:         http.MethodGet,
			expectedOrigin: "https://anything.example",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "default max age",
			config:         CORSConfig{AllowedOrigins: []string{"*"}},
			origin:         "https://anything.example",
			method:         http.MethodOptions,
			preflight:      true,
			expectedOrigin: "https://anything.example",
			expectedStatus: http.StatusNoContent,
			expectedMaxAge: "300",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://gateway.test/api/products", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			w := httptest.NewRecorder()

			CORS(tt.config)(handler).ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.expectedOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.expectedOrigin)
			}
			if tt.expectedMethods != "" {
				if got := w.Header().Get("Access-Control-Allow-Methods"); got != tt.expectedMethods {
					t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, tt.expectedMethods)
				}
			}
			if tt.expectedMaxAge != "" {
				if got := w.Header().Get("Access-Control-Max-Age"); got != tt.expectedMaxAge {
					t.Errorf("Access-Control-Max-Age = %q, want %q", got, tt.expectedMaxAge)
				}
			}
		})
	}
}

func TestCORS_NoOrigin(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	CORS(CORSConfig{AllowedOrigins: []string{"*"}})(handler).ServeHTTP(w, req)

	if !called {
		t.Error("expected next handler to be called")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS headers without Origin")
	}
}

func TestCORS_Credentials(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()

	CORS(CORSConfig{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowCredentials: true,
		ExposedHeaders:   []string{"X-Request-ID"},
	})(handler).ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected Access-Control-Allow-Credentials: true")
	}
	if w.Header().Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Errorf("Access-Control-Expose-Headers = %q", w.Header().Get("Access-Control-Expose-Headers"))
	}
}
