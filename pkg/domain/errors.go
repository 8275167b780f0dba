package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig matches every *ConfigError via errors.Is.
	ErrInvalidConfig = errors.New("invalid split configuration")
	// ErrInvalidState matches every *InvalidStateError via errors.Is.
	ErrInvalidState = errors.New("invalid node state")
	// ErrNodeNotFound is returned when a node ID is not part of the tree.
	ErrNodeNotFound = errors.New("node not found")
	// ErrTreeNotFound is returned when a tree ID cannot be found in the store.
	ErrTreeNotFound = errors.New("tree not found")
	// ErrTreeExists is returned when creating a tree whose ID is already stored.
	ErrTreeExists = errors.New("tree already exists")
	// ErrStaleGeneration is returned when a planned mutation was superseded by a newer one.
	ErrStaleGeneration = errors.New("node generation advanced; result discarded")
	// ErrProvider matches every *ProviderError via errors.Is.
	ErrProvider = errors.New("metric group provider failed")
)

// ConfigError reports malformed generator input. It is raised before any mutation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid split configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid split configuration: field %q: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// InvalidStateError reports an operation requested on a node in the wrong state.
type InvalidStateError struct {
	NodeID string
	Reason string
	Err    error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("node %q: %s", e.NodeID, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func (e *InvalidStateError) Unwrap() error {
	return e.Err
}

// ProviderError wraps a failed metric-group fetch. No mutation is performed.
type ProviderError struct {
	Metric string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fetching groups for %q: %v", e.Metric, e.Err)
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AggregateError collects several failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}
