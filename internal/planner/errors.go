package planner

import "errors"

var (
	// ErrNoChildren is returned when generation is attempted with no
	// children configured. The planning service is never called.
	ErrNoChildren = errors.New("at least one child is required to generate a plan")

	// ErrNoPlan is returned by operations that require a generated plan.
	ErrNoPlan = errors.New("no plan has been generated")

	// ErrBusy is returned when a refinement or regeneration is already
	// in flight. Both mutate identity bookkeeping read-then-write, so
	// overlapping triggers are rejected rather than interleaved.
	ErrBusy = errors.New("a refinement or regeneration is already in progress")

	// ErrClosed is returned once the session has been discarded. Results
	// from in-flight calls that land after Close are dropped.
	ErrClosed = errors.New("planner session is closed")

	ErrNoConversation = errors.New("no refinement conversation is open")
	ErrNoProposal     = errors.New("no proposal is awaiting a decision")
	ErrEntryNotFound  = errors.New("schedule entry not found")
)
