// Package models defines the core domain models for CRM workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Instantiable
	WorkflowStatusArchived WorkflowStatus = "archived" // Kept for existing instances, not instantiable
)

// TriggerType describes how instances of a workflow are started.
type TriggerType string

const (
	TriggerTypeManual    TriggerType = "manual"
	TriggerTypeAutomatic TriggerType = "automatic"
)

// Priority is shared by workflows and instances.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Workflow represents a reusable multi-step business process definition.
// Editing a definition never changes instances already created from it;
// each instance carries its own step snapshot.
type Workflow struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"               validate:"required,min=3"`
	Description       string          `json:"description"`
	Category          string          `json:"category"           validate:"required"`
	Priority          Priority        `json:"priority"           validate:"required,oneof=low medium high urgent"`
	TriggerType       TriggerType     `json:"trigger_type"       validate:"required,oneof=manual automatic"`
	Status            WorkflowStatus  `json:"status"             validate:"required,oneof=active archived"`
	CreatedBy         string          `json:"created_by"         validate:"required"`
	EstimatedDuration string          `json:"estimated_duration"`
	Steps             []*WorkflowStep `json:"steps"` // Ordered by StepOrder ascending
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
