package domain

import (
	"math"
	"time"
)

// SyncOp is the remote operation a sync job performs
type SyncOp string

const (
	SyncOpPush   SyncOp = "push"   // Merge entities into the remote entity type
	SyncOpRemove SyncOp = "remove" // Remove one value from the remote entity type
)

// SyncJobStatus is the lifecycle state of an outbox job
type SyncJobStatus string

const (
	SyncJobPending SyncJobStatus = "pending"
	SyncJobDone    SyncJobStatus = "done"
	SyncJobDead    SyncJobStatus = "dead"
)

// MaxSyncBackoff caps the delay between two attempts of a job
const MaxSyncBackoff = 300 * time.Second

// SyncJob is a pending Dialogflow change persisted in the outbox
type SyncJob struct {
	ID            string        `json:"id" bson:"_id"`
	Op            SyncOp        `json:"op" bson:"op"`
	EntityType    EntityKind    `json:"entityType" bson:"entityType"`
	Entities      []Entity      `json:"entities,omitempty" bson:"entities,omitempty"` // For push
	Value         string        `json:"value,omitempty" bson:"value,omitempty"`       // For remove
	Status        SyncJobStatus `json:"status" bson:"status"`
	Attempts      int           `json:"attempts" bson:"attempts"`
	NextAttemptAt time.Time     `json:"nextAttemptAt" bson:"nextAttemptAt"`
	LastError     string        `json:"lastError,omitempty" bson:"lastError,omitempty"`
	CreatedAt     time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// SyncBackoff returns the delay before the next attempt after attempts failures
func SyncBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	secs := math.Pow(2, float64(attempts+1))
	d := time.Duration(secs) * time.Second
	if secs > MaxSyncBackoff.Seconds() || d > MaxSyncBackoff {
		return MaxSyncBackoff
	}
	return d
}
