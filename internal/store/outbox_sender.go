// Package store provides the OutboxSender for processing outgoing messages.
package store

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultOutboxPollInterval is used when NewOutboxSender gets a non-positive interval.
	DefaultOutboxPollInterval = 5 * time.Second
	// DefaultOutboxMaxAttempts is the number of sends before a message is abandoned.
	DefaultOutboxMaxAttempts = 8

	outboxBaseBackoff = 10 * time.Second
	outboxMaxBackoff  = time.Hour
)

// OutboxSendFunc is the callback that performs the actual message send.
// It receives the outbox message and should return an error if sending failed.
type OutboxSendFunc func(ctx context.Context, msg OutboxMessage) error

// OutboxSender periodically claims due outbox messages and attempts to send them.
type OutboxSender struct {
	repo           OutboxRepo
	sendFunc       OutboxSendFunc
	pollInterval   time.Duration
	staleThreshold time.Duration
	claimLimit     int
	maxAttempts    int
}

// NewOutboxSender creates a new OutboxSender.
func NewOutboxSender(repo OutboxRepo, sendFunc OutboxSendFunc, pollInterval time.Duration) *OutboxSender {
	if pollInterval <= 0 {
		pollInterval = DefaultOutboxPollInterval
	}
	return &OutboxSender{
		repo:           repo,
		sendFunc:       sendFunc,
		pollInterval:   pollInterval,
		staleThreshold: 5 * time.Minute,
		claimLimit:     10,
		maxAttempts:    DefaultOutboxMaxAttempts,
	}
}

// RecoverStaleMessages requeues messages stuck in sending state (crash recovery).
// Should be called once at startup.
func (s *OutboxSender) RecoverStaleMessages(ctx context.Context) error {
	staleBefore := time.Now().Add(-s.staleThreshold)
	n, err := s.repo.RequeueStaleSendingMessages(ctx, staleBefore)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("OutboxSender.RecoverStaleMessages: requeued stale messages", "count", n)
	}
	return nil
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *OutboxSender) Run(ctx context.Context) {
	slog.Info("OutboxSender.Run: starting outbox sender", "pollInterval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("OutboxSender.Run: stopping")
			return
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}

// PollOnce claims due messages and attempts each once. It returns how many were sent.
func (s *OutboxSender) PollOnce(ctx context.Context) int {
	now := time.Now()
	msgs, err := s.repo.ClaimDueOutboxMessages(ctx, now, s.claimLimit)
	if err != nil {
		slog.Error("OutboxSender.PollOnce: claim failed", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		slog.Debug("OutboxSender.PollOnce: sending message", "id", msg.ID, "recipient", msg.Recipient, "kind", msg.Kind)
		err := s.sendFunc(ctx, msg)
		if err == nil {
			if err := s.repo.MarkOutboxMessageSent(ctx, msg.ID); err != nil {
				slog.Error("OutboxSender.PollOnce: mark sent error", "id", msg.ID, "error", err)
			}
			sent++
			continue
		}

		slog.Error("OutboxSender.PollOnce: send failed", "id", msg.ID, "attempts", msg.Attempts+1, "error", err)
		if msg.Attempts+1 >= s.maxAttempts {
			if err := s.repo.AbandonOutboxMessage(ctx, msg.ID, err.Error()); err != nil {
				slog.Error("OutboxSender.PollOnce: abandon message error", "id", msg.ID, "error", err)
			}
			slog.Warn("OutboxSender.PollOnce: message abandoned", "id", msg.ID, "recipient", msg.Recipient)
			continue
		}
		if err := s.repo.FailOutboxMessage(ctx, msg.ID, err.Error(), now.Add(outboxBackoff(msg.Attempts))); err != nil {
			slog.Error("OutboxSender.PollOnce: fail message error", "id", msg.ID, "error", err)
		}
	}
	return sent
}

// outboxBackoff doubles from 10s per prior attempt and caps at one hour.
func outboxBackoff(attempts int) time.Duration {
	backoff := outboxBaseBackoff
	for i := 0; i < attempts && backoff < outboxMaxBackoff; i++ {
		backoff *= 2
	}
	if backoff > outboxMaxBackoff {
		backoff = outboxMaxBackoff
	}
	return backoff
}
