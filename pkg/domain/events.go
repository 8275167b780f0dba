package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageAdded        EventType = "stage_added"
	EventStageRemoved      EventType = "stage_removed"
	EventThresholdsUpdated EventType = "thresholds_updated"
	EventFetch             EventType = "fetch"
	EventIntegrityWarning  EventType = "integrity_warning"
)

// IntegrityKind names the inconsistency behind an integrity warning.
type IntegrityKind string

const (
	IntegrityCountMismatch    IntegrityKind = "count_mismatch"
	IntegrityDuplicateMembers IntegrityKind = "duplicate_members"
	IntegrityOversizedResult  IntegrityKind = "oversized_intersection"
	IntegrityDroppedItems     IntegrityKind = "dropped_items"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// StageEvent describes a completed mutation of a node.
type StageEvent struct {
	EventBase
	TreeID   string   `json:"tree_id,omitempty"`
	NodeID   string   `json:"node_id"`
	RuleType RuleType `json:"rule_type,omitempty"`
	Children int      `json:"children"`
}

// FetchEvent describes one provider round trip.
type FetchEvent struct {
	EventBase
	Metric     string        `json:"metric"`
	Thresholds int           `json:"thresholds"`
	Groups     int           `json:"groups"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// IntegrityEvent is a logged, non-fatal data inconsistency.
type IntegrityEvent struct {
	EventBase
	Kind     IntegrityKind `json:"kind"`
	NodeID   string        `json:"node_id,omitempty"`
	Metric   string        `json:"metric,omitempty"`
	Reported int           `json:"reported"`
	Computed int           `json:"computed"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStageAdded        func(context.Context, *StageEvent)
	OnStageRemoved      func(context.Context, *StageEvent)
	OnThresholdsUpdated func(context.Context, *StageEvent)
	OnFetch             func(context.Context, *FetchEvent)
	OnIntegrityWarning  func(context.Context, *IntegrityEvent)
}
