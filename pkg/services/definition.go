package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
)

// ErrWorkflowNotFound is returned when a workflow definition is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Definition is the workflow definition service: CRUD over definitions and
// their ordered steps.
type Definition struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewDefinition creates a new definition service.
func NewDefinition(persistence persistence.Persistence) *Definition {
	return &Definition{
		persistence: persistence,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (d *Definition) HealthCheck(ctx context.Context) (string, bool) {
	if d.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := d.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create adds a new workflow definition. Defaults: manual trigger, active
// status, medium priority. Steps supplied inline must already be in strictly
// increasing order.
func (d *Definition) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, NewValidationError("Create", "workflow is required", ErrWorkflowNil)
	}

	if workflow.TriggerType == "" {
		workflow.TriggerType = models.TriggerTypeManual
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusActive
	}

	if workflow.Priority == "" {
		workflow.Priority = models.PriorityMedium
	}

	err := d.validate.Struct(workflow)
	if err != nil {
		return nil, NewValidationError("Create", err.Error(), ErrInvalidRequest)
	}

	err = validateStepSequence(workflow.Steps)
	if err != nil {
		return nil, err
	}

	workflow.ID = ""

	err = d.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// UpdateWorkflowRequest carries the partially updatable definition fields.
type UpdateWorkflowRequest struct {
	Name              *string                `validate:"omitempty,min=3"`
	Description       *string
	Category          *string                `validate:"omitempty,min=1"`
	Priority          *models.Priority       `validate:"omitempty,oneof=low medium high urgent"`
	Status            *models.WorkflowStatus `validate:"omitempty,oneof=active archived"`
	EstimatedDuration *string
}

// Update applies a partial update to an existing definition and bumps its
// updated_at.
func (d *Definition) Update(ctx context.Context, workflowID string, req UpdateWorkflowRequest) (*models.Workflow, error) {
	err := d.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("Update", err.Error(), ErrInvalidRequest)
	}

	existing, err := d.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, persistence.NewWorkflowError("Update", workflowID, ErrWorkflowNotFound)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Category != nil {
		existing.Category = *req.Category
	}

	if req.Priority != nil {
		existing.Priority = *req.Priority
	}

	if req.Status != nil {
		existing.Status = *req.Status
	}

	if req.EstimatedDuration != nil {
		existing.EstimatedDuration = *req.EstimatedDuration
	}

	existing.UpdatedAt = time.Now().UTC()

	err = d.persistence.WorkflowRepository().Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return existing, nil
}

// FetchByID retrieves a definition with its ordered steps.
func (d *Definition) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := d.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("FetchByID", id, ErrWorkflowNotFound)
	}

	return workflow, nil
}

// FetchAll retrieves all definitions with their steps, newest first.
func (d *Definition) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := d.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// AddStep appends a step to a definition. The caller supplies step_order;
// it must be strictly greater than every existing order on the workflow so
// the execution sequence shown to users stays deterministic.
func (d *Definition) AddStep(ctx context.Context, workflowID string, step *models.WorkflowStep) (*models.WorkflowStep, error) {
	err := d.validate.Struct(step)
	if err != nil {
		return nil, NewValidationError("AddStep", err.Error(), ErrInvalidRequest)
	}

	workflow, err := d.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("AddStep", workflowID, ErrWorkflowNotFound)
	}

	for _, existing := range workflow.Steps {
		if existing.StepOrder >= step.StepOrder {
			return nil, NewValidationError("AddStep",
				fmt.Sprintf("step_order %d is not greater than existing step_order %d", step.StepOrder, existing.StepOrder),
				ErrStepOrderNotGreater,
			)
		}
	}

	step.ID = ""

	err = d.persistence.WorkflowRepository().SaveStep(ctx, workflowID, step)
	if err != nil {
		return nil, fmt.Errorf("failed to add step: %w", err)
	}

	return step, nil
}

// UpdateStepRequest carries the partially updatable step fields. StepOrder
// is deliberately absent; reordering means recreating the definition.
type UpdateStepRequest struct {
	Name              *string `validate:"omitempty,min=1"`
	Description       *string
	StepType          *string `validate:"omitempty,min=1"`
	RequiredRole      *string `validate:"omitempty,oneof=admin sales_leader sales_rep"`
	EstimatedDuration *string
	IsOptional        *bool
	AssigneeID        *string
}

// UpdateStep applies a partial update to one step of a definition.
func (d *Definition) UpdateStep(ctx context.Context, workflowID, stepID string, req UpdateStepRequest) (*models.WorkflowStep, error) {
	err := d.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("UpdateStep", err.Error(), ErrInvalidRequest)
	}

	step, err := d.persistence.WorkflowRepository().GetStep(ctx, workflowID, stepID)
	if err != nil {
		return nil, err
	}

	if step == nil {
		return nil, persistence.NewWorkflowError("UpdateStep", workflowID, persistence.ErrStepNotFound)
	}

	if req.Name != nil {
		step.Name = *req.Name
	}

	if req.Description != nil {
		step.Description = *req.Description
	}

	if req.StepType != nil {
		step.StepType = *req.StepType
	}

	if req.RequiredRole != nil {
		step.RequiredRole = *req.RequiredRole
	}

	if req.EstimatedDuration != nil {
		step.EstimatedDuration = *req.EstimatedDuration
	}

	if req.IsOptional != nil {
		step.IsOptional = *req.IsOptional
	}

	if req.AssigneeID != nil {
		if *req.AssigneeID == "" {
			step.AssigneeID = nil
		} else {
			step.AssigneeID = req.AssigneeID
		}
	}

	err = d.persistence.WorkflowRepository().SaveStep(ctx, workflowID, step)
	if err != nil {
		return nil, fmt.Errorf("failed to update step: %w", err)
	}

	return step, nil
}

// DeleteStep removes one step from a definition.
func (d *Definition) DeleteStep(ctx context.Context, workflowID, stepID string) error {
	deleted, err := d.persistence.WorkflowRepository().DeleteStep(ctx, workflowID, stepID)
	if err != nil {
		return fmt.Errorf("failed to delete step: %w", err)
	}

	if !deleted {
		return persistence.NewWorkflowError("DeleteStep", workflowID, persistence.ErrStepNotFound)
	}

	return nil
}

// Delete removes a definition and its steps. Instances already spawned
// from the definition keep their snapshot and stay readable. Reports
// whether the workflow existed; deleting an absent workflow is benign.
func (d *Definition) Delete(ctx context.Context, workflowID string) (bool, error) {
	deleted, err := d.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return false, fmt.Errorf("failed to delete workflow: %w", err)
	}

	return deleted, nil
}

// validateStepSequence enforces strictly increasing step_order. The slice
// is expected in caller-supplied order; gaps are fine.
func validateStepSequence(steps []*models.WorkflowStep) error {
	lastOrder := 0

	for _, step := range steps {
		if step.StepOrder <= lastOrder {
			return NewValidationError("validateStepSequence",
				fmt.Sprintf("step %q has step_order %d, previous step has %d", step.Name, step.StepOrder, lastOrder),
				ErrStepOrderNotGreater,
			)
		}

		lastOrder = step.StepOrder
	}

	return nil
}
