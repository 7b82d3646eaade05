package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/colorbook/colorbook-server/internal/errors"
)

// SagaState is a step of an entity write.
type SagaState string

// Write states. Any non-terminal state may move to StateRollingBack.
const (
	StateStart          SagaState = "start"
	StateAssetsUploaded SagaState = "assets_uploaded"
	StateRowInserted    SagaState = "row_inserted"
	StateLinksWritten   SagaState = "links_written"
	StateCommitted      SagaState = "committed"
	StateRollingBack    SagaState = "rolling_back"
	StateFailed         SagaState = "failed"
)

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// saga sequences one entity write and undoes completed steps on failure.
// Compensations run last-registered first. A saga is used by a single
// goroutine.
type saga struct {
	op       string
	entity   string
	entityID string
	state    SagaState
	undo     []compensation
	timeout  time.Duration // bounds the whole rollback
	logger   *slog.Logger
}

func newSaga(op, entity, entityID string, timeout time.Duration, logger *slog.Logger) *saga {
	return &saga{
		op:       op,
		entity:   entity,
		entityID: entityID,
		state:    StateStart,
		timeout:  timeout,
		logger:   logger.With("op", op, "entity", entity, "id", entityID),
	}
}

// advance records progress.
func (s *saga) advance(state SagaState) {
	s.logger.Debug("saga step", "from", s.state, "to", state)
	s.state = state
}

// onRollback registers an undo step for work that has (possibly partly) happened.
func (s *saga) onRollback(name string, fn func(ctx context.Context) error) {
	s.undo = append(s.undo, compensation{name: name, fn: fn})
}

// fail runs every compensation and returns cause unchanged. Compensation
// errors are logged with the ROLLBACK code and never replace cause.
func (s *saga) fail(ctx context.Context, cause error) error {
	failedAt := s.state
	s.state = StateRollingBack

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	for i := len(s.undo) - 1; i >= 0; i-- {
		step := s.undo[i]
		if err := s.runStep(ctx, step); err != nil {
			s.logger.Error("rollback step failed",
				"code", errors.CodeRollback,
				"step", step.name,
				"cause", cause,
				"error", err,
			)
		}
	}
	s.undo = nil
	s.state = StateFailed

	s.logger.Warn("write failed",
		"failed_at", failedAt,
		"code", errors.CodeOf(cause),
		"error", cause,
	)
	return cause
}

// runStep isolates a panicking compensation so later steps still run.
func (s *saga) runStep(ctx context.Context, step compensation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", step.name, r)
		}
	}()
	return step.fn(ctx)
}

// commit marks the write durable. Registered compensations are dropped.
func (s *saga) commit() {
	s.undo = nil
	s.advance(StateCommitted)
}

// recover converts a panic in the saga body into a compensated INTERNAL
// error. Use as: defer sg.recover(ctx, &err).
func (s *saga) recover(ctx context.Context, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	s.logger.Error("panic during write", "panic", r, "stack", string(debug.Stack()))
	*errp = s.fail(ctx, errors.Internal("unexpected error while saving").WithCause(fmt.Errorf("panic: %v", r)))
}
