package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RunCompleted is emitted after a sandbox run finishes
type RunCompleted struct {
	ID           uuid.UUID     `json:"id"`
	LoopID       string        `json:"loop_id"`
	Scope        string        `json:"scope"`
	Passed       bool          `json:"passed"`
	ExitCode     int           `json:"exit_code"`
	TimedOut     bool          `json:"timed_out"`
	FailingTests int           `json:"failing_tests"`
	Duration     time.Duration `json:"duration"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// HintRevealed is emitted after a coaching payload is delivered and paid for
type HintRevealed struct {
	ID              uuid.UUID `json:"id"`
	LoopID          string    `json:"loop_id"`
	Scope           string    `json:"scope"`
	Tier            int       `json:"tier"`
	TokensRemaining int       `json:"tokens_remaining"`
	RevealedAt      time.Time `json:"revealed_at"`
}

// Publisher publishes loop lifecycle events to the queue
type Publisher struct {
	conn *Connection
}

// NewPublisher creates a new event publisher
func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// PublishRunCompleted publishes a run completion event
func (p *Publisher) PublishRunCompleted(ctx context.Context, ev *RunCompleted) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CompletedAt.IsZero() {
		ev.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, RunQueueName, ev); err != nil {
		return fmt.Errorf("failed to publish run completed event: %w", err)
	}

	slog.Info("published run completed event",
		"event_id", ev.ID,
		"loop_id", ev.LoopID,
		"passed", ev.Passed,
		"exit_code", ev.ExitCode,
	)

	return nil
}

// PublishHintRevealed publishes a hint reveal event
func (p *Publisher) PublishHintRevealed(ctx context.Context, ev *HintRevealed) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.RevealedAt.IsZero() {
		ev.RevealedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, HintQueueName, ev); err != nil {
		return fmt.Errorf("failed to publish hint revealed event: %w", err)
	}

	slog.Info("published hint revealed event",
		"event_id", ev.ID,
		"loop_id", ev.LoopID,
		"tier", ev.Tier,
		"tokens_remaining", ev.TokensRemaining,
	)

	return nil
}
