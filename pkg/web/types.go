// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"time"

	"github.com/stonebase/masonflow/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name              string              `json:"name"               validate:"required,min=3"`
	Description       string              `json:"description"`
	Category          string              `json:"category"           validate:"required"`
	Priority          models.Priority     `json:"priority"           validate:"omitempty,oneof=low medium high urgent"`
	TriggerType       models.TriggerType  `json:"trigger_type"       validate:"omitempty,oneof=manual automatic"`
	CreatedBy         string              `json:"created_by"         validate:"required"`
	EstimatedDuration string              `json:"estimated_duration"`
	Steps             []CreateStepRequest `json:"steps"              validate:"omitempty,dive"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name              *string                `json:"name,omitempty"               validate:"omitempty,min=3"`
	Description       *string                `json:"description,omitempty"`
	Category          *string                `json:"category,omitempty"           validate:"omitempty,min=1"`
	Priority          *models.Priority       `json:"priority,omitempty"           validate:"omitempty,oneof=low medium high urgent"`
	Status            *models.WorkflowStatus `json:"status,omitempty"             validate:"omitempty,oneof=active archived"`
	EstimatedDuration *string                `json:"estimated_duration,omitempty"`
}

// CreateStepRequest represents the request body for adding a step to a
// workflow. The caller supplies step_order; it must be greater than every
// existing order on the workflow.
type CreateStepRequest struct {
	StepOrder         int     `json:"step_order"         validate:"required,min=1"`
	Name              string  `json:"name"               validate:"required"`
	Description       string  `json:"description"`
	StepType          string  `json:"step_type"          validate:"required"`
	RequiredRole      string  `json:"required_role"      validate:"required,oneof=admin sales_leader sales_rep"`
	EstimatedDuration string  `json:"estimated_duration"`
	IsOptional        bool    `json:"is_optional"`
	AssigneeID        *string `json:"assignee_id,omitempty"`
}

// UpdateStepRequest represents the request body for updating a step.
// StepOrder cannot be changed; reordering means recreating the workflow.
type UpdateStepRequest struct {
	Name              *string `json:"name,omitempty"               validate:"omitempty,min=1"`
	Description       *string `json:"description,omitempty"`
	StepType          *string `json:"step_type,omitempty"          validate:"omitempty,min=1"`
	RequiredRole      *string `json:"required_role,omitempty"      validate:"omitempty,oneof=admin sales_leader sales_rep"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
	IsOptional        *bool   `json:"is_optional,omitempty"`
	AssigneeID        *string `json:"assignee_id,omitempty"`
}

// CreateInstanceRequest represents the request body for starting a workflow run.
type CreateInstanceRequest struct {
	WorkflowID   string          `json:"workflow_id"   validate:"required"`
	InstanceName string          `json:"instance_name" validate:"required"`
	StartedBy    string          `json:"started_by"    validate:"required"`
	AssignedTo   *string         `json:"assigned_to,omitempty"`
	ClientID     *string         `json:"client_id,omitempty"`
	QuoteID      *string         `json:"quote_id,omitempty"`
	ProductID    *string         `json:"product_id,omitempty"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Priority     models.Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// ReassignInstanceRequest represents the request body for changing a run's
// owner. An empty assigned_to clears ownership.
type ReassignInstanceRequest struct {
	AssignedTo string `json:"assigned_to"`
}

// CompleteStepRequest represents the request body for completing a step of
// a run.
type CompleteStepRequest struct {
	Output string `json:"output"`
	Notes  string `json:"notes"`
}

// CreateTemplateRequest represents the request body for creating a template.
type CreateTemplateRequest struct {
	Name        string                   `json:"name"        validate:"required,min=3"`
	Description string                   `json:"description"`
	Category    string                   `json:"category"`
	Blueprint   models.WorkflowBlueprint `json:"blueprint"   validate:"required"`
	CreatedBy   string                   `json:"created_by"  validate:"required"`
}

// InstantiateTemplateRequest represents the request body for materializing
// a template into a workflow plus a running instance.
type InstantiateTemplateRequest struct {
	StartedBy    string     `json:"started_by"    validate:"required"`
	InstanceName string     `json:"instance_name" validate:"required"`
	AssignedTo   *string    `json:"assigned_to,omitempty"`
	ClientID     *string    `json:"client_id,omitempty"`
	QuoteID      *string    `json:"quote_id,omitempty"`
	ProductID    *string    `json:"product_id,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

// CreateCommentRequest represents the request body for appending a comment
// to a run.
type CreateCommentRequest struct {
	AuthorID string `json:"author_id" validate:"required"`
	Body     string `json:"body"      validate:"required"`
}
