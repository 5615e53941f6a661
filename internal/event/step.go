package event

import (
	"fmt"
	"time"
)

// StepTick advances engine time by one step. The end-of-step sweep closes
// due auctions, runs the stabilization pass when due, and offsets surplus
// against debt. Idempotency key: the step number itself, as the scheduler
// emits each step exactly once.
type StepTick struct {
	Step      uint64
	Sequence  int64
	Timestamp time.Time
}

func (s *StepTick) IdempotencyKey() string {
	return fmt.Sprintf("step-%d", s.Step)
}

func (s *StepTick) EventType() EventType {
	return EventTypeStepTick
}

func (s *StepTick) Partition() *string {
	p := PartitionSteps
	return &p
}

func (s *StepTick) SourceSequence() int64 {
	return s.Sequence
}
