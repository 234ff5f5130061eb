package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/BTreeMap/Tranquil/internal/twiliowhatsapp"
)

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+1 (555) 000-1234", "+15550001234", false},
		{"whatsapp:+15550001234", "+15550001234", false},
		{"15550001234", "+15550001234", false},
		{"", "", true},
		{"abc", "", true},
		{"123", "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalizePhone(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRecipient) {
				t.Errorf("CanonicalizePhone(%q) expected ErrInvalidRecipient, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("CanonicalizePhone(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestTwilioService_SendMessage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "+1 555 000 1234", "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].To != "+15550001234" || sent[0].Body != "hi" {
		t.Errorf("unexpected sent messages: %+v", sent)
	}

	if err := svc.SendMessage(context.Background(), "12", "bad"); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("expected ErrInvalidRecipient, got %v", err)
	}

	svc.Stop()
	if err := svc.SendMessage(context.Background(), "+15550001234", "late"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestTwilioService_ClientError(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	mock.Err = errors.New("twilio down")
	svc := NewTwilioService(mock)
	if err := svc.SendMessage(context.Background(), "+15550001234", "hi"); err == nil {
		t.Fatal("expected client error to propagate")
	}
}

func TestMockService(t *testing.T) {
	m := NewMockService()
	if err := m.SendMessage(context.Background(), "+15550001234", "one"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	m.Err = errors.New("fail")
	if err := m.SendMessage(context.Background(), "+15550001234", "two"); err == nil {
		t.Error("expected configured error")
	}
	m.Err = nil
	m.Stop()
	if err := m.SendMessage(context.Background(), "+15550001234", "three"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	if got := m.Sent(); len(got) != 1 || got[0].Body != "one" {
		t.Errorf("unexpected sent: %+v", got)
	}
}

var (
	_ Service = (*TwilioService)(nil)
	_ Service = (*MockService)(nil)
)
