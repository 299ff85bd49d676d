package models

import "time"

// TriggerKind classifies how a trigger instance decides to fire.
type TriggerKind string

const (
	TriggerKindSchedule TriggerKind = "schedule" // recurrence rule
	TriggerKindPoll     TriggerKind = "poll"     // fixed-interval poll with watermark dedup
	TriggerKindWebhook  TriggerKind = "webhook"  // event-driven, never scanned
)

// TriggerInstance is one configured trigger attached to one workflow. Kind is
// immutable after creation; config must validate against the connector's
// declared schema before activation.
type TriggerInstance struct {
	ID                 string         `json:"id"                   validate:"required"`
	WorkflowID         string         `json:"workflow_id"          validate:"required"`
	ConnectorTriggerID string         `json:"connector_trigger_id" validate:"required"`
	Kind               TriggerKind    `json:"kind"                 validate:"required,oneof=schedule poll webhook"`
	Config             map[string]any `json:"config"`
	// ConnectionRef is the credential handle resolved by the connector layer.
	ConnectionRef string `json:"connection_ref,omitempty"`
	Active        bool   `json:"active"`

	// NextDueAt is the precomputed next fire time for schedule and poll
	// kinds, kept in storage so the scanner never recomputes recurrence
	// math per tick (same shape as a cron schedule table).
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Connection is the credential handle a connector receives. Secret material
// stays opaque to the engine; Metadata carries per-tenant identifiers such as
// a Slack team id.
type Connection struct {
	ID       string         `json:"id"`
	Secret   string         `json:"secret,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PollWatermark is the per-trigger-instance high-water-mark for poll dedup.
// LastSeenMillis is nil before the first poll. It is monotonically
// non-decreasing and only advanced after the corresponding batch has been
// durably handed off downstream.
type PollWatermark struct {
	TriggerInstanceID string     `json:"trigger_instance_id"`
	LastSeenMillis    *int64     `json:"last_seen_millis,omitempty"`
	LastPolledAt      *time.Time `json:"last_polled_at,omitempty"`
}
