package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestStringFields(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want string
	}{
		{"service", Service("gateway"), FieldService, "gateway"},
		{"request id", RequestID("req-1"), FieldRequestID, "req-1"},
		{"user id", UserID("user-123"), FieldUserID, "user-123"},
		{"email", Email("a@example.com"), FieldEmail, "a@example.com"},
		{"role", Role("staff"), FieldRole, "staff"},
		{"route", Route("stock"), FieldRoute, "stock"},
		{"upstream", Upstream("http://stock:3002"), FieldUpstream, "http://stock:3002"},
		{"ip", IP("10.0.0.1"), FieldIP, "10.0.0.1"},
		{"method", Method("PATCH"), FieldMethod, "PATCH"},
		{"path", Path("/api/stock/1"), FieldPath, "/api/stock/1"},
		{"error", Error(errors.New("boom")), FieldError, "boom"},
		{"nil error", Error(nil), FieldError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.key)
			}
			if tt.attr.Value.String() != tt.want {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	attr := Status(503)
	if attr.Key != FieldStatus {
		t.Errorf("key = %q, want %q", attr.Key, FieldStatus)
	}
	if attr.Value.Int64() != 503 {
		t.Errorf("value = %d, want 503", attr.Value.Int64())
	}
}

func TestDuration(t *testing.T) {
	attr := Duration(1500 * time.Millisecond)
	if attr.Key != FieldDuration {
		t.Errorf("key = %q, want %q", attr.Key, FieldDuration)
	}
	if attr.Value.Int64() != 1500 {
		t.Errorf("value = %d, want 1500", attr.Value.Int64())
	}
}
