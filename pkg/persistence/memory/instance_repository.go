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

func notFoundWorkflow(op, workflowID string) error {
	return persistence.NewWorkflowError(op, workflowID, persistence.ErrWorkflowNotFound)
}

// InstanceRepository implements persistence.InstanceRepository in memory.
type InstanceRepository struct {
	store *store
}

// Create inserts the instance and snapshots the workflow's current steps
// into pending step-instances under one lock hold.
func (r *InstanceRepository) Create(_ context.Context, instance *models.WorkflowInstance) error {
	if instance.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}

		instance.ID = id.String()
	}

	instance.Status = models.InstanceStatusPending
	instance.Progress = 0

	if instance.StartedAt.IsZero() {
		instance.StartedAt = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	workflow, ok := r.store.workflows[instance.WorkflowID]
	if !ok {
		return notFoundWorkflow("Create", instance.WorkflowID)
	}

	if len(workflow.Steps) == 0 {
		return persistence.NewWorkflowError("Create", instance.WorkflowID, persistence.ErrEmptyWorkflow)
	}

	for _, step := range workflow.Steps {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate step-instance ID: %w", err)
		}

		stepInstance := &models.WorkflowStepInstance{
			ID:                 id.String(),
			WorkflowInstanceID: instance.ID,
			StepID:             step.ID,
			Status:             models.StepInstanceStatusPending,
		}

		if step.AssigneeID != nil {
			assignee := *step.AssigneeID
			stepInstance.AssignedTo = &assignee
		}

		r.store.stepInstances[stepInstance.ID] = stepInstance
	}

	r.store.instances[instance.ID] = cloneInstance(instance)

	return nil
}

// GetByID returns an instance, or nil if absent.
func (r *InstanceRepository) GetByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	instance, ok := r.store.instances[id]
	if !ok {
		return nil, nil
	}

	return cloneInstance(instance), nil
}

// GetWithDetails joins the instance with its originating workflow and
// step-instances. The workflow is nil when the definition was deleted.
func (r *InstanceRepository) GetWithDetails(_ context.Context, id string) (*models.InstanceWithDetails, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	instance, ok := r.store.instances[id]
	if !ok {
		return nil, nil
	}

	details := &models.InstanceWithDetails{WorkflowInstance: *cloneInstance(instance)}

	stepsByID := make(map[string]*models.WorkflowStep)

	if workflow, ok := r.store.workflows[instance.WorkflowID]; ok {
		details.Workflow = cloneWorkflow(workflow)
		for _, step := range details.Workflow.Steps {
			stepsByID[step.ID] = step
		}
	}

	for _, si := range r.store.stepInstances {
		if si.WorkflowInstanceID != id {
			continue
		}

		details.StepInstances = append(details.StepInstances, &models.StepInstanceDetail{
			WorkflowStepInstance: *cloneStepInstance(si),
			Step:                 stepsByID[si.StepID],
		})
	}

	sort.Slice(details.StepInstances, func(i, j int) bool {
		return details.StepInstances[i].ID < details.StepInstances[j].ID
	})

	return details, nil
}

// List returns instances newest-first, optionally filtered.
func (r *InstanceRepository) List(_ context.Context, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	instances := make([]*models.WorkflowInstance, 0)

	for _, instance := range r.store.instances {
		switch {
		case opts.Involving != "":
			assigned := instance.AssignedTo != nil && *instance.AssignedTo == opts.Involving
			if instance.StartedBy != opts.Involving && !assigned {
				continue
			}
		case opts.AssignedTo != "":
			if instance.AssignedTo == nil || *instance.AssignedTo != opts.AssignedTo {
				continue
			}
		}

		instances = append(instances, cloneInstance(instance))
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].StartedAt.After(instances[j].StartedAt)
	})

	return instances, nil
}

// Reassign updates the instance owner.
func (r *InstanceRepository) Reassign(_ context.Context, id string, assignedTo *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	instance, ok := r.store.instances[id]
	if !ok {
		return persistence.NewInstanceError("Reassign", id, persistence.ErrInstanceNotFound)
	}

	if assignedTo == nil {
		instance.AssignedTo = nil

		return nil
	}

	assignee := *assignedTo
	instance.AssignedTo = &assignee

	return nil
}

// CompleteStep marks one step-instance completed and recomputes the parent
// run's progress and status under a single lock hold, so concurrent sibling
// completions always see each other's writes.
func (r *InstanceRepository) CompleteStep(_ context.Context, stepInstanceID, output, notes string) (*models.WorkflowStepInstance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stepInstance, ok := r.store.stepInstances[stepInstanceID]
	if !ok {
		return nil, persistence.NewInstanceError("CompleteStep", stepInstanceID, persistence.ErrStepInstanceNotFound)
	}

	instance, ok := r.store.instances[stepInstance.WorkflowInstanceID]
	if !ok {
		return nil, persistence.NewInstanceError("CompleteStep", stepInstance.WorkflowInstanceID, persistence.ErrInstanceNotFound)
	}

	now := time.Now().UTC()

	stepInstance.Status = models.StepInstanceStatusCompleted
	stepInstance.CompletedAt = &now
	stepInstance.Output = output
	stepInstance.Notes = notes

	var completed, total int

	for _, si := range r.store.stepInstances {
		if si.WorkflowInstanceID != instance.ID {
			continue
		}

		total++

		if si.Status == models.StepInstanceStatusCompleted {
			completed++
		}
	}

	instance.Progress = models.ProgressFor(completed, total)

	if instance.Progress == 100 {
		instance.Status = models.InstanceStatusCompleted
		if instance.CompletedAt == nil {
			instance.CompletedAt = &now
		}
	} else {
		instance.Status = models.InstanceStatusInProgress
		instance.CompletedAt = nil
	}

	return cloneStepInstance(stepInstance), nil
}

// Delete removes the instance, its step-instances, and its comments.
func (r *InstanceRepository) Delete(_ context.Context, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, ok := r.store.instances[id]
	if !ok {
		return false, nil
	}

	delete(r.store.instances, id)
	delete(r.store.comments, id)

	for siID, si := range r.store.stepInstances {
		if si.WorkflowInstanceID == id {
			delete(r.store.stepInstances, siID)
		}
	}

	return true, nil
}

func cloneInstance(instance *models.WorkflowInstance) *models.WorkflowInstance {
	clone := *instance

	clone.AssignedTo = cloneStringPtr(instance.AssignedTo)
	clone.ClientID = cloneStringPtr(instance.ClientID)
	clone.QuoteID = cloneStringPtr(instance.QuoteID)
	clone.ProductID = cloneStringPtr(instance.ProductID)
	clone.DueDate = cloneTimePtr(instance.DueDate)
	clone.CompletedAt = cloneTimePtr(instance.CompletedAt)

	return &clone
}

func cloneStepInstance(si *models.WorkflowStepInstance) *models.WorkflowStepInstance {
	clone := *si

	clone.AssignedTo = cloneStringPtr(si.AssignedTo)
	clone.CompletedAt = cloneTimePtr(si.CompletedAt)

	return &clone
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}

	value := *s

	return &value
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	value := *t

	return &value
}
