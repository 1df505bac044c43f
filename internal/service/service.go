// Package service runs the conversation flow and the order lifecycle on top
// of storage, independent of the chat transport.
package service

import (
	"context"

	"github.com/m3rciful/musicbot/internal/generation"
	"github.com/m3rciful/musicbot/internal/storage"
)

// Store opens a transaction per handled event.
type Store interface {
	InTx(ctx context.Context, fn func(storage.Tx) error) error
}

// Generator submits jobs to the generation API and polls their status.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
	Status(ctx context.Context, taskID string) (generation.Status, error)
}

// Refunder returns a captured payment to the payer.
type Refunder interface {
	Refund(ctx context.Context, payerTelegramID int64, chargeID string) error
}

// Recorder receives lifecycle counters. core/metrics implements it.
type Recorder interface {
	OrderTransition(status string)
	GenerationCall(op, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) OrderTransition(string)        {}
func (noopRecorder) GenerationCall(string, string) {}

func recorderOrNoop(r Recorder) Recorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}
