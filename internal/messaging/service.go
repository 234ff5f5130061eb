// Package messaging delivers outbound Tranquil notifications such as
// professional referrals and check-in reminders.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	// ErrServiceStopped is returned by SendMessage after Stop.
	ErrServiceStopped = errors.New("messaging service stopped")
	// ErrInvalidRecipient is returned for recipients that are not phone numbers.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// minPhoneDigits is the shortest accepted phone number.
const minPhoneDigits = 6

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates a recipient and returns it
	// in E.164 form ("+" followed by digits).
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Stop rejects further sends.
	Stop() error
}

// CanonicalizePhone strips formatting and any channel prefix from a phone
// number and returns it as "+<digits>".
func CanonicalizePhone(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", fmt.Errorf("%w: recipient cannot be empty", ErrInvalidRecipient)
	}
	if i := strings.Index(recipient, ":"); i >= 0 {
		recipient = recipient[i+1:]
	}
	digits := phoneNumberRegex.ReplaceAllString(recipient, "")
	if digits == "" {
		return "", fmt.Errorf("%w: no digits found in %q", ErrInvalidRecipient, recipient)
	}
	if len(digits) < minPhoneDigits {
		return "", fmt.Errorf("%w: %q is too short (minimum %d digits required)", ErrInvalidRecipient, digits, minPhoneDigits)
	}
	return "+" + digits, nil
}

// SentMessage is a message captured by MockService.
type SentMessage struct {
	To   string
	Body string
}

// MockService records messages in memory. It is safe for concurrent use.
type MockService struct {
	mu      sync.Mutex
	sent    []SentMessage
	stopped bool
	// Err, when set, is returned from SendMessage.
	Err error
}

// NewMockService creates an empty MockService.
func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	canonical, err := m.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrServiceStopped
	}
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMessage{To: canonical, Body: body})
	return nil
}

func (m *MockService) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// Sent returns a copy of all recorded messages.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}
