package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/Tranquil/internal/store"
)

// OutboxKindMessage marks outbox rows written by OutboxService.
const OutboxKindMessage = "message"

// outboxPayload is the JSON stored in OutboxMessage.PayloadJSON.
type outboxPayload struct {
	Body string `json:"body"`
}

// OutboxService implements Service by queueing sends in a durable outbox.
// A background OutboxSender delivers them through the wrapped Service and
// retries failures, so queued messages survive restarts.
type OutboxService struct {
	inner  Service
	repo   store.OutboxRepo
	sender *store.OutboxSender

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewOutboxService wraps inner. Call Start to begin delivery.
func NewOutboxService(inner Service, repo store.OutboxRepo, pollInterval time.Duration) *OutboxService {
	s := &OutboxService{inner: inner, repo: repo}
	s.sender = store.NewOutboxSender(repo, s.deliver, pollInterval)
	return s
}

// Start requeues messages left mid-send by a previous process and starts
// the delivery loop. It returns immediately.
func (s *OutboxService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrServiceStopped
	}
	if s.done != nil {
		return nil
	}
	if err := s.sender.RecoverStaleMessages(ctx); err != nil {
		return fmt.Errorf("failed to recover outbox: %w", err)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.sender.Run(loopCtx)
	}()
	return nil
}

func (s *OutboxService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return s.inner.ValidateAndCanonicalizeRecipient(recipient)
}

// SendMessage queues body for to. Identical pending messages are queued once.
func (s *OutboxService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(outboxPayload{Body: body})
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	id, err := s.repo.EnqueueOutboxMessage(ctx, canonical, OutboxKindMessage, string(payload), dedupeKey(canonical, body))
	if err != nil {
		return fmt.Errorf("failed to queue message: %w", err)
	}
	slog.Debug("OutboxService.SendMessage: message queued", "id", id, "to", canonical)
	return nil
}

// Stop halts delivery and waits for the loop to exit. Queued messages stay
// in the outbox for the next Start. The wrapped Service is not stopped.
func (s *OutboxService) Stop() error {
	s.mu.Lock()
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Drain delivers every message that is due now. It returns how many were sent.
func (s *OutboxService) Drain(ctx context.Context) int {
	return s.sender.PollOnce(ctx)
}

func (s *OutboxService) deliver(ctx context.Context, msg store.OutboxMessage) error {
	if msg.Kind != OutboxKindMessage {
		return fmt.Errorf("unknown outbox kind %q", msg.Kind)
	}
	var p outboxPayload
	if err := json.Unmarshal([]byte(msg.PayloadJSON), &p); err != nil {
		return fmt.Errorf("decode outbox payload %s: %w", msg.ID, err)
	}
	return s.inner.SendMessage(ctx, msg.Recipient, p.Body)
}

func dedupeKey(to, body string) string {
	sum := sha256.Sum256([]byte(body))
	return to + ":" + hex.EncodeToString(sum[:8])
}
