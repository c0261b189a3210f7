// Package guard runs destructive cluster operations through an explicit
// confirmation step.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// State is the position of a Deletion in its lifecycle.
type State string

const (
	StateRequested State = "requested"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
	StateExecuted  State = "executed"
	StateFailed    State = "failed"
)

// Kind is the type of resource being deleted.
type Kind string

const (
	KindGroup Kind = "consumer group"
	KindTopic Kind = "topic"
)

// ErrInvalidTransition is returned when a step is taken out of order.
var ErrInvalidTransition = errors.New("invalid deletion state transition")

// Deleter performs the destructive calls.
type Deleter interface {
	DeleteGroup(ctx context.Context, group string) error
	DeleteTopic(ctx context.Context, topic string) error
}

// Confirmer decides whether a requested deletion goes ahead.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Deletion tracks one delete request from Requested to Executed, Failed or
// Cancelled.
type Deletion struct {
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	State State  `json:"state"`
	Err   error  `json:"-"`
}

// NewDeletion returns a Deletion in StateRequested.
func NewDeletion(kind Kind, name string) *Deletion {
	return &Deletion{Kind: kind, Name: name, State: StateRequested}
}

// Question is what the operator is asked before anything is deleted.
func (d *Deletion) Question() string {
	return fmt.Sprintf("Are you sure you want to delete %s '%s'? This cannot be undone.", d.Kind, d.Name)
}

// Confirm moves a requested deletion to Confirmed or Cancelled. If c fails
// (for example on interrupt) the deletion is cancelled and the error
// returned.
func (d *Deletion) Confirm(ctx context.Context, c Confirmer) error {
	if d.State != StateRequested {
		return fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, d.State)
	}

	ok, err := c.Confirm(ctx, d.Question())
	if err != nil {
		d.State = StateCancelled
		return err
	}
	if ok {
		d.State = StateConfirmed
	} else {
		d.State = StateCancelled
	}
	slog.Debug("deletion confirmation", "kind", d.Kind, "name", d.Name, "state", d.State)
	return nil
}

// Execute performs a confirmed deletion. A failed delete is recorded in Err
// and State, never retried.
func (d *Deletion) Execute(ctx context.Context, del Deleter) error {
	if d.State != StateConfirmed {
		return fmt.Errorf("%w: execute from %s", ErrInvalidTransition, d.State)
	}

	var err error
	switch d.Kind {
	case KindGroup:
		err = del.DeleteGroup(ctx, d.Name)
	case KindTopic:
		err = del.DeleteTopic(ctx, d.Name)
	default:
		return fmt.Errorf("unknown resource kind %q", d.Kind)
	}

	if err != nil {
		d.State = StateFailed
		d.Err = err
		slog.Debug("deletion failed", "kind", d.Kind, "name", d.Name, "error", err)
		return nil
	}
	d.State = StateExecuted
	return nil
}

// Run asks c and, on approval, deletes the resource. The returned error is
// only set for interrupts and misuse; a failed delete is reported through
// the Deletion.
func Run(ctx context.Context, kind Kind, name string, c Confirmer, del Deleter) (*Deletion, error) {
	d := NewDeletion(kind, name)
	if err := d.Confirm(ctx, c); err != nil {
		return d, err
	}
	if d.State == StateCancelled {
		return d, nil
	}
	return d, d.Execute(ctx, del)
}
