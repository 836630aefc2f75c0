package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
)

// TemplateRepository implements persistence.TemplateRepository in memory.
type TemplateRepository struct {
	store *store
}

// Save inserts a template.
func (r *TemplateRepository) Save(_ context.Context, template *models.WorkflowTemplate) error {
	if template.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate template ID: %w", err)
		}

		template.ID = id.String()
	}

	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	clone := *template
	r.store.templates[template.ID] = &clone

	return nil
}

// GetByID returns a template, or nil if absent.
func (r *TemplateRepository) GetByID(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	template, ok := r.store.templates[id]
	if !ok {
		return nil, nil
	}

	clone := *template

	return &clone, nil
}

// GetAll returns all templates, newest first.
func (r *TemplateRepository) GetAll(_ context.Context) ([]*models.WorkflowTemplate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	templates := make([]*models.WorkflowTemplate, 0, len(r.store.templates))
	for _, template := range r.store.templates {
		clone := *template
		templates = append(templates, &clone)
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].CreatedAt.After(templates[j].CreatedAt)
	})

	return templates, nil
}

// Instantiate materializes a template under one lock hold: new workflow
// with steps, new instance with its step-instance snapshot, usage counter
// bumped by exactly one. Nothing is visible on failure.
func (r *TemplateRepository) Instantiate(_ context.Context, templateID string, workflow *models.Workflow, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	for _, step := range workflow.Steps {
		if step.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate step ID: %w", err)
			}

			step.ID = id.String()
		}

		step.WorkflowID = workflow.ID
	}

	if instance.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}

		instance.ID = id.String()
	}

	instance.WorkflowID = workflow.ID
	instance.Status = models.InstanceStatusPending
	instance.Progress = 0
	instance.StartedAt = now

	// Generate everything fallible before touching the store so a failure
	// leaves nothing visible.
	stepInstances := make([]*models.WorkflowStepInstance, 0, len(workflow.Steps))

	for _, step := range workflow.Steps {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate step-instance ID: %w", err)
		}

		stepInstances = append(stepInstances, &models.WorkflowStepInstance{
			ID:                 id.String(),
			WorkflowInstanceID: instance.ID,
			StepID:             step.ID,
			Status:             models.StepInstanceStatusPending,
			AssignedTo:         cloneStringPtr(step.AssigneeID),
		})
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	template, ok := r.store.templates[templateID]
	if !ok {
		return persistence.NewTemplateError("Instantiate", templateID, persistence.ErrTemplateNotFound)
	}

	r.store.workflows[workflow.ID] = cloneWorkflow(workflow)

	for _, stepInstance := range stepInstances {
		r.store.stepInstances[stepInstance.ID] = stepInstance
	}

	r.store.instances[instance.ID] = cloneInstance(instance)

	template.UsageCount++

	return nil
}
