package models

import "time"

// StepBlueprint is one step entry inside a template. The same ordering
// rules as WorkflowStep apply when the blueprint is ingested.
type StepBlueprint struct {
	StepOrder         int     `json:"step_order"         validate:"required,min=1"`
	Name              string  `json:"name"               validate:"required"`
	Description       string  `json:"description"`
	StepType          string  `json:"step_type"          validate:"required"`
	RequiredRole      string  `json:"required_role"      validate:"required,oneof=admin sales_leader sales_rep"`
	EstimatedDuration string  `json:"estimated_duration"`
	IsOptional        bool    `json:"is_optional"`
	AssigneeID        *string `json:"assignee_id,omitempty"`
}

// BlueprintMetadata carries the definition fields a template stamps onto
// each workflow it materializes.
type BlueprintMetadata struct {
	Name              string   `json:"name"               validate:"required,min=3"`
	Description       string   `json:"description"`
	Category          string   `json:"category"           validate:"required"`
	Priority          Priority `json:"priority"           validate:"required,oneof=low medium high urgent"`
	EstimatedDuration string   `json:"estimated_duration"`
}

// WorkflowBlueprint is the typed template payload: workflow metadata plus
// ordered step definitions, validated on ingestion so instantiation cannot
// fail midway on malformed data.
type WorkflowBlueprint struct {
	Metadata BlueprintMetadata `json:"metadata" validate:"required"`
	Steps    []StepBlueprint   `json:"steps"    validate:"required,min=1,dive"`
}

// WorkflowTemplate is a reusable blueprint. UsageCount increments by exactly
// one per successful instantiation and never on failure.
type WorkflowTemplate struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"        validate:"required,min=3"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Blueprint   WorkflowBlueprint `json:"blueprint"   validate:"required"`
	UsageCount  int               `json:"usage_count"`
	CreatedBy   string            `json:"created_by"  validate:"required"`
	CreatedAt   time.Time         `json:"created_at"`
}
