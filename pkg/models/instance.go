package models

import "time"

// InstanceStatus represents the lifecycle state of a workflow run.
type InstanceStatus string

const (
	InstanceStatusPending    InstanceStatus = "pending"
	InstanceStatusInProgress InstanceStatus = "in_progress"
	InstanceStatusCompleted  InstanceStatus = "completed"
)

// StepInstanceStatus tracks a single step within a run. There are no
// partial states; a step is either still open or done.
type StepInstanceStatus string

const (
	StepInstanceStatusPending   StepInstanceStatus = "pending"
	StepInstanceStatusCompleted StepInstanceStatus = "completed"
)

// WorkflowInstance is a single run of a definition. Progress is always
// round(100 * completed / total) over its step-instances and is never
// written outside the completion path.
type WorkflowInstance struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id"   validate:"required"`
	StartedBy    string         `json:"started_by"    validate:"required"`
	InstanceName string         `json:"instance_name" validate:"required"`
	AssignedTo   *string        `json:"assigned_to,omitempty"`
	ClientID     *string        `json:"client_id,omitempty"`  // Opaque CRM entity link
	QuoteID      *string        `json:"quote_id,omitempty"`   // Opaque CRM entity link
	ProductID    *string        `json:"product_id,omitempty"` // Opaque CRM entity link
	DueDate      *time.Time     `json:"due_date,omitempty"`
	Priority     Priority       `json:"priority" validate:"required,oneof=low medium high urgent"`
	Status       InstanceStatus `json:"status"`
	Progress     int            `json:"progress"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// WorkflowStepInstance is the per-run tracking record for one step. StepID
// points into the originating workflow's steps for ordering and metadata
// display only; it is never re-resolved if the definition changes later.
type WorkflowStepInstance struct {
	ID                 string             `json:"id"`
	WorkflowInstanceID string             `json:"workflow_instance_id"`
	StepID             string             `json:"step_id"`
	Status             StepInstanceStatus `json:"status"`
	AssignedTo         *string            `json:"assigned_to,omitempty"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	Output             string             `json:"output,omitempty"`
	Notes              string             `json:"notes,omitempty"`
}

// StepInstanceDetail joins a step-instance with the step definition it was
// snapshotted from and the resolved assignee display name.
type StepInstanceDetail struct {
	WorkflowStepInstance

	Step         *WorkflowStep `json:"step,omitempty"`
	AssigneeName string        `json:"assignee_name,omitempty"`
}

// InstanceWithDetails is the full read model for a run: the instance, its
// originating definition with ordered steps, and every step-instance joined
// to its step metadata.
type InstanceWithDetails struct {
	WorkflowInstance

	Workflow      *Workflow             `json:"workflow,omitempty"`
	StepInstances []*StepInstanceDetail `json:"step_instances"`
	AssigneeName  string                `json:"assignee_name,omitempty"`
	StarterName   string                `json:"starter_name,omitempty"`
}

// ProgressFor computes the aggregate progress percentage for a run.
// Integer rounding is half-up, matching round(100 * done / total).
func ProgressFor(completed, total int) int {
	if total <= 0 {
		return 0
	}

	return (100*completed + total/2) / total
}
