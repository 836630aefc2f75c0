package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
	"github.com/stonebase/masonflow/pkg/users"
)

// ErrInstanceNotFound is returned when a workflow run is not found.
var ErrInstanceNotFound = persistence.ErrInstanceNotFound

// Instance is the workflow run service: starting runs from definitions,
// listing, reassignment, and the detailed read model.
type Instance struct {
	persistence persistence.Persistence
	directory   users.Directory
	validate    *validator.Validate
}

// NewInstance creates a new instance service. The directory may be nil, in
// which case read models carry raw user identifiers without display names.
func NewInstance(persistence persistence.Persistence, directory users.Directory) *Instance {
	return &Instance{
		persistence: persistence,
		directory:   directory,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create starts a new run of a definition. The workflow's current steps are
// snapshotted into pending step-instances atomically with the run itself;
// later edits to the definition never touch the snapshot.
func (i *Instance) Create(ctx context.Context, instance *models.WorkflowInstance) (*models.WorkflowInstance, error) {
	if instance == nil {
		return nil, NewValidationError("Create", "instance is required", ErrInvalidRequest)
	}

	if instance.Priority == "" {
		instance.Priority = models.PriorityMedium
	}

	err := i.validate.Struct(instance)
	if err != nil {
		return nil, NewValidationError("Create", err.Error(), ErrInvalidRequest)
	}

	instance.ID = ""
	instance.Status = models.InstanceStatusPending
	instance.Progress = 0
	instance.CompletedAt = nil

	err = i.persistence.InstanceRepository().Create(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	return instance, nil
}

// FetchByID retrieves the full read model for a run: instance, originating
// definition when it still exists, step-instances joined to step metadata,
// and display names resolved through the user directory.
func (i *Instance) FetchByID(ctx context.Context, id string) (*models.InstanceWithDetails, error) {
	details, err := i.persistence.InstanceRepository().GetWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	if details == nil {
		return nil, persistence.NewInstanceError("FetchByID", id, ErrInstanceNotFound)
	}

	i.resolveNames(ctx, details)

	return details, nil
}

// FetchAll lists runs newest-first, optionally filtered by owner or by a
// user's involvement as starter or owner.
func (i *Instance) FetchAll(ctx context.Context, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	instances, err := i.persistence.InstanceRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	return instances, nil
}

// Reassign changes the run owner. An empty assignee clears ownership.
func (i *Instance) Reassign(ctx context.Context, id string, assigneeID string) (*models.WorkflowInstance, error) {
	existing, err := i.persistence.InstanceRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, persistence.NewInstanceError("Reassign", id, ErrInstanceNotFound)
	}

	var assignedTo *string
	if assigneeID != "" {
		assignedTo = &assigneeID
	}

	err = i.persistence.InstanceRepository().Reassign(ctx, id, assignedTo)
	if err != nil {
		return nil, fmt.Errorf("failed to reassign instance: %w", err)
	}

	existing.AssignedTo = assignedTo

	return existing, nil
}

// Delete removes a run and its step-instance snapshot. Reports whether the
// run existed.
func (i *Instance) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := i.persistence.InstanceRepository().Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete instance: %w", err)
	}

	return deleted, nil
}

// resolveNames fills display names on the read model. Directory failures
// degrade to raw identifiers; they never fail the read.
func (i *Instance) resolveNames(ctx context.Context, details *models.InstanceWithDetails) {
	if i.directory == nil {
		return
	}

	details.StarterName = i.displayName(ctx, details.StartedBy)

	if details.AssignedTo != nil {
		details.AssigneeName = i.displayName(ctx, *details.AssignedTo)
	}

	for _, step := range details.StepInstances {
		if step.AssignedTo != nil {
			step.AssigneeName = i.displayName(ctx, *step.AssignedTo)
		}
	}
}

func (i *Instance) displayName(ctx context.Context, id string) string {
	user, err := i.directory.Lookup(ctx, id)
	if err != nil || user == nil {
		return ""
	}

	return user.DisplayName
}
