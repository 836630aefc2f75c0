package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/otelhelper"
	"github.com/stonebase/masonflow/pkg/persistence"
)

// ErrTemplateNotFound is returned when a template is not found.
var ErrTemplateNotFound = persistence.ErrTemplateNotFound

// Template manages reusable workflow blueprints and their one-call
// instantiation into a running instance.
type Template struct {
	persistence persistence.Persistence
	tracer      trace.Tracer
	validate    *validator.Validate
}

// NewTemplate creates a new template service. A nil tracer disables
// tracing.
func NewTemplate(persistence persistence.Persistence, tracer trace.Tracer) *Template {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("template")
	}

	return &Template{
		persistence: persistence,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create stores a new template. The blueprint is validated up front,
// including strictly increasing step order, so instantiation can never
// fail on malformed blueprint data later.
func (t *Template) Create(ctx context.Context, template *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	if template == nil {
		return nil, NewValidationError("Create", "template is required", ErrInvalidRequest)
	}

	if template.Blueprint.Metadata.Priority == "" {
		template.Blueprint.Metadata.Priority = models.PriorityMedium
	}

	err := t.validate.Struct(template)
	if err != nil {
		return nil, NewValidationError("Create", err.Error(), ErrInvalidRequest)
	}

	err = validateBlueprintSequence(template.Blueprint.Steps)
	if err != nil {
		return nil, err
	}

	template.ID = ""
	template.UsageCount = 0

	err = t.persistence.TemplateRepository().Save(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	return template, nil
}

// FetchByID retrieves a template.
func (t *Template) FetchByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	template, err := t.persistence.TemplateRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if template == nil {
		return nil, persistence.NewTemplateError("FetchByID", id, ErrTemplateNotFound)
	}

	return template, nil
}

// FetchAll retrieves all templates, newest first.
func (t *Template) FetchAll(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	templates, err := t.persistence.TemplateRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	return templates, nil
}

// InstantiateRequest carries the per-run fields a caller supplies when
// materializing a template; everything else comes from the blueprint.
type InstantiateRequest struct {
	StartedBy    string     `json:"started_by"    validate:"required"`
	InstanceName string     `json:"instance_name" validate:"required"`
	AssignedTo   *string    `json:"assigned_to,omitempty"`
	ClientID     *string    `json:"client_id,omitempty"`
	QuoteID      *string    `json:"quote_id,omitempty"`
	ProductID    *string    `json:"product_id,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

// InstantiateResult is the outcome of a template instantiation: the
// materialized workflow and the instance started from it.
type InstantiateResult struct {
	Workflow *models.Workflow         `json:"workflow"`
	Instance *models.WorkflowInstance `json:"instance"`
}

// Instantiate materializes a template into a fresh workflow plus a running
// instance in one atomic operation. The template's usage counter moves by
// exactly one, and only when the whole operation succeeds.
func (t *Template) Instantiate(ctx context.Context, templateID string, req InstantiateRequest) (*InstantiateResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, t.tracer, "template.instantiate",
		attribute.String(otelhelper.TemplateIDKey, templateID),
	)
	defer span.End()

	err := t.validate.Struct(req)
	if err != nil {
		valErr := NewValidationError("Instantiate", err.Error(), ErrInvalidRequest)
		otelhelper.SetError(span, valErr)

		return nil, valErr
	}

	template, err := t.persistence.TemplateRepository().GetByID(ctx, templateID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if template == nil {
		err = persistence.NewTemplateError("Instantiate", templateID, ErrTemplateNotFound)
		otelhelper.SetError(span, err)

		return nil, err
	}

	workflow := workflowFromBlueprint(&template.Blueprint, req.StartedBy)
	instance := &models.WorkflowInstance{
		StartedBy:    req.StartedBy,
		InstanceName: req.InstanceName,
		AssignedTo:   req.AssignedTo,
		ClientID:     req.ClientID,
		QuoteID:      req.QuoteID,
		ProductID:    req.ProductID,
		DueDate:      req.DueDate,
		Priority:     template.Blueprint.Metadata.Priority,
	}

	err = t.persistence.TemplateRepository().Instantiate(ctx, templateID, workflow, instance)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to instantiate template: %w", err)
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.InstanceIDKey, instance.ID),
	)

	return &InstantiateResult{
		Workflow: workflow,
		Instance: instance,
	}, nil
}

// workflowFromBlueprint expands a blueprint into a concrete definition
// owned by the caller.
func workflowFromBlueprint(blueprint *models.WorkflowBlueprint, createdBy string) *models.Workflow {
	steps := make([]*models.WorkflowStep, 0, len(blueprint.Steps))

	for _, bp := range blueprint.Steps {
		steps = append(steps, &models.WorkflowStep{
			StepOrder:         bp.StepOrder,
			Name:              bp.Name,
			Description:       bp.Description,
			StepType:          bp.StepType,
			RequiredRole:      bp.RequiredRole,
			EstimatedDuration: bp.EstimatedDuration,
			IsOptional:        bp.IsOptional,
			AssigneeID:        bp.AssigneeID,
		})
	}

	return &models.Workflow{
		Name:              blueprint.Metadata.Name,
		Description:       blueprint.Metadata.Description,
		Category:          blueprint.Metadata.Category,
		Priority:          blueprint.Metadata.Priority,
		TriggerType:       models.TriggerTypeManual,
		Status:            models.WorkflowStatusActive,
		CreatedBy:         createdBy,
		EstimatedDuration: blueprint.Metadata.EstimatedDuration,
		Steps:             steps,
	}
}

// validateBlueprintSequence enforces strictly increasing step_order inside
// a blueprint at ingestion time.
func validateBlueprintSequence(steps []models.StepBlueprint) error {
	lastOrder := 0

	for _, step := range steps {
		if step.StepOrder <= lastOrder {
			return NewValidationError("validateBlueprintSequence",
				fmt.Sprintf("blueprint step %q has step_order %d, previous step has %d", step.Name, step.StepOrder, lastOrder),
				ErrBlueprintStepOrder,
			)
		}

		lastOrder = step.StepOrder
	}

	return nil
}
