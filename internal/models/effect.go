package models

import "time"

// EffectKind separates notifications from audit records.
type EffectKind string

const (
	EffectKindNotify EffectKind = "notify"
	EffectKindAudit  EffectKind = "audit"
)

// Notification types handed to the notifier.
const (
	NotifyEnrollmentRequested = "enrollment_requested"
	NotifyEnrollmentDecided   = "enrollment_decided"
	NotifyAssignmentSubmitted = "assignment_submitted"
	NotifySubmissionGraded    = "submission_graded"
	NotifyExamScored          = "exam_scored"
)

// Effect is a side-effect instruction produced by a workflow transition.
// The caller executes it after the new state has been persisted.
type Effect struct {
	Kind        EffectKind             `json:"kind"`
	Type        string                 `json:"type"`
	RecipientID string                 `json:"recipient_id,omitempty"`
	ActorID     string                 `json:"actor_id,omitempty"`
	Resource    string                 `json:"resource,omitempty"`
	ResourceID  string                 `json:"resource_id,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

// Notification is the message shape delivered to the notifier sink.
type Notification struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	RecipientID string                 `json:"recipient_id"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
