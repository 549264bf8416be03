package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{
			name:       "X-Forwarded-For with single IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195"},
			expectedIP: "203.0.113.195",
		},
		{
			name:       "X-Forwarded-For with multiple IPs",
			headers:    map[string]string{"X-Forwarded-For": "  203.0.113.195 , 70.41.3.18, 150.172.238.178"},
			expectedIP: "203.0.113.195",
		},
		{
			name:       "X-Real-IP when no X-Forwarded-For",
			headers:    map[string]string{"X-Real-IP": "198.51.100.42"},
			expectedIP: "198.51.100.42",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.0.2.1:54321",
			expectedIP: "192.0.2.1",
		},
		{
			name:       "IPv6 RemoteAddr",
			remoteAddr: "[2001:db8::1]:443",
			expectedIP: "2001:db8::1",
		},
		{
			name:       "RemoteAddr that is not host:port",
			remoteAddr: "192.0.2.9",
			expectedIP: "192.0.2.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if got := GetClientIP(req); got != tt.expectedIP {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.expectedIP)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantEmpty bool
		wantEmail string
	}{
		{name: "valid", body: `{"email":"a@example.com"}`, wantEmail: "a@example.com"},
		{name: "empty body", body: "", wantErr: true, wantEmpty: true},
		{name: "malformed", body: `{"email":`, wantErr: true},
		{name: "unknown field", body: `{"email":"a@example.com","admin":true}`, wantErr: true},
		{name: "trailing data", body: `{"email":"a@example.com"}{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var p payload
			err := DecodeJSON(w, req, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantEmpty && !errors.Is(err, ErrEmptyBody) {
				t.Errorf("expected ErrEmptyBody, got %v", err)
			}
			if !tt.wantErr && p.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", p.Email, tt.wantEmail)
			}
		})
	}
}
