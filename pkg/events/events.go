// Package events defines the event types that drive workflow dispatch and
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "vestra.executions" // Topic for workflow execution dispatch and lifecycle events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Dispatch events, consumed by workers.
	ExecutionRequestedEvent    EventType = "execution.requested"
	DistributionRequestedEvent EventType = "distribution.requested"

	// Lifecycle events, informational.
	ExecutionCompletedEvent    EventType = "execution.completed"
	ExecutionFailedEvent       EventType = "execution.failed"
	CompensationEscalatedEvent EventType = "compensation.escalated"
	DistributionCompletedEvent EventType = "distribution.completed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	WorkerID    string         `json:"worker_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExecutionRequested asks a worker to run a submitted workflow execution.
type ExecutionRequested struct {
	BaseEvent

	WorkflowType models.WorkflowType `json:"workflow_type"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

// DistributionRequested asks a worker to run a due distribution batch.
type DistributionRequested struct {
	BaseEvent

	BatchID string `json:"batch_id"`
}

func (e DistributionRequested) GetType() EventType {
	return DistributionRequestedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Status     models.ExecutionStatus `json:"status"`
	DurationMs int64                  `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Status     models.ExecutionStatus `json:"status"`
	Error      string                 `json:"error"`
	DurationMs int64                  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// CompensationEscalated signals that a compensating activity exhausted its
// retries and an operator task was queued.
type CompensationEscalated struct {
	BaseEvent

	StepName string `json:"step_name"`
	Reason   string `json:"reason"`
}

func (e CompensationEscalated) GetType() EventType {
	return CompensationEscalatedEvent
}

type DistributionCompleted struct {
	BaseEvent

	BatchID     string `json:"batch_id"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	TotalAmount int64  `json:"total_amount"`
}

func (e DistributionCompleted) GetType() EventType {
	return DistributionCompletedEvent
}

func NewBaseEvent(eventType EventType, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}
