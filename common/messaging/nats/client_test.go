package nats

import (
	"testing"
	"time"

	"github.com/inventra-labs/inventra/common/messaging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.URL == "" {
		t.Error("expected default URL")
	}
	if cfg.MaxReconnects != -1 {
		t.Errorf("MaxReconnects = %d, want -1", cfg.MaxReconnects)
	}
	if cfg.ReconnectWait != 2*time.Second {
		t.Errorf("ReconnectWait = %v, want 2s", cfg.ReconnectWait)
	}
}

func TestToNATS(t *testing.T) {
	msg := &messaging.Message{
		Subject:  messaging.SubjectUsersRoleChanged,
		Data:     []byte(`{"user_id":"u1"}`),
		Metadata: map[string]string{"X-Signature": "abc"},
	}

	m := toNATS(msg)
	if m.Subject != msg.Subject {
		t.Errorf("Subject = %q, want %q", m.Subject, msg.Subject)
	}
	if string(m.Data) != string(msg.Data) {
		t.Errorf("Data = %q, want %q", m.Data, msg.Data)
	}
	if m.Header.Get("X-Signature") != "abc" {
		t.Errorf("header X-Signature = %q, want abc", m.Header.Get("X-Signature"))
	}
}

func TestToNATS_NoHeaders(t *testing.T) {
	m := toNATS(&messaging.Message{Subject: "a.b.c"})
	if m.Header != nil {
		t.Errorf("expected nil header, got %v", m.Header)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	if _, err := NewClient(cfg); err == nil {
		t.Error("expected error connecting to an unreachable server")
	}
}
