package model

import "time"

// PropagationOp is the kind of reference rewrite a propagation task performs
type PropagationOp string

const (
	// OpReplace rewrites OldIdentityID references to NewIdentityID
	OpReplace PropagationOp = "replace"
	// OpRestore reverses a link: restores player entries whose
	// PreviousIdentityID equals OldIdentityID back to OldIdentityID
	OpRestore PropagationOp = "restore"
)

// TaskID uniquely identifies an outbox propagation task
type TaskID string

// PropagationTask is a pending identity-reference rewrite for one game
// collection. Tasks are enqueued when an in-request propagation fails and
// are retried by the outbox worker; applying a task is idempotent.
type PropagationTask struct {
	ID            TaskID
	Collection    string
	Op            PropagationOp
	OldIdentityID IdentityID
	NewIdentityID IdentityID // unused for restore tasks
	StampPrevious bool

	CreatedAt time.Time
	Attempts  int
	LastError string
}
