package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stonebase/masonflow/pkg/models"
)

// WorkflowRepository implements persistence.WorkflowRepository in memory.
type WorkflowRepository struct {
	store *store
}

// Save upserts a workflow and replaces its steps wholesale.
func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

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

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.workflows[workflow.ID] = cloneWorkflow(workflow)

	return nil
}

// GetByID returns a workflow with its ordered steps, or nil if absent.
func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflow, ok := r.store.workflows[id]
	if !ok {
		return nil, nil
	}

	return cloneWorkflow(workflow), nil
}

// GetAll returns all workflows, newest first.
func (r *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(r.store.workflows))
	for _, workflow := range r.store.workflows {
		workflows = append(workflows, cloneWorkflow(workflow))
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// SaveStep upserts a single step of an existing workflow.
func (r *WorkflowRepository) SaveStep(_ context.Context, workflowID string, step *models.WorkflowStep) error {
	if step.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate step ID: %w", err)
		}

		step.ID = id.String()
	}

	step.WorkflowID = workflowID

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	workflow, ok := r.store.workflows[workflowID]
	if !ok {
		return notFoundWorkflow("SaveStep", workflowID)
	}

	for i, existing := range workflow.Steps {
		if existing.ID == step.ID {
			workflow.Steps[i] = cloneStep(step)
			workflow.UpdatedAt = time.Now().UTC()
			sortSteps(workflow)

			return nil
		}
	}

	workflow.Steps = append(workflow.Steps, cloneStep(step))
	workflow.UpdatedAt = time.Now().UTC()
	sortSteps(workflow)

	return nil
}

// GetStep returns one step of a workflow, or nil if absent.
func (r *WorkflowRepository) GetStep(_ context.Context, workflowID, stepID string) (*models.WorkflowStep, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflow, ok := r.store.workflows[workflowID]
	if !ok {
		return nil, nil
	}

	for _, step := range workflow.Steps {
		if step.ID == stepID {
			return cloneStep(step), nil
		}
	}

	return nil, nil
}

// DeleteStep removes one step and reports whether it existed.
func (r *WorkflowRepository) DeleteStep(_ context.Context, workflowID, stepID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	workflow, ok := r.store.workflows[workflowID]
	if !ok {
		return false, nil
	}

	for i, step := range workflow.Steps {
		if step.ID == stepID {
			workflow.Steps = append(workflow.Steps[:i], workflow.Steps[i+1:]...)
			workflow.UpdatedAt = time.Now().UTC()

			return true, nil
		}
	}

	return false, nil
}

// Delete removes a workflow and its steps. Instances spawned from it keep
// their step-instance snapshot.
func (r *WorkflowRepository) Delete(_ context.Context, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, ok := r.store.workflows[id]
	if !ok {
		return false, nil
	}

	delete(r.store.workflows, id)

	return true, nil
}

func sortSteps(workflow *models.Workflow) {
	sort.Slice(workflow.Steps, func(i, j int) bool {
		return workflow.Steps[i].StepOrder < workflow.Steps[j].StepOrder
	})
}

func cloneWorkflow(workflow *models.Workflow) *models.Workflow {
	clone := *workflow
	clone.Steps = make([]*models.WorkflowStep, 0, len(workflow.Steps))

	for _, step := range workflow.Steps {
		clone.Steps = append(clone.Steps, cloneStep(step))
	}

	sortSteps(&clone)

	return &clone
}

func cloneStep(step *models.WorkflowStep) *models.WorkflowStep {
	clone := *step
	if step.AssigneeID != nil {
		assignee := *step.AssigneeID
		clone.AssigneeID = &assignee
	}

	return &clone
}
