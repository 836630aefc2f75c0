// Package persistence provides the data storage abstraction for workflow
// definitions, runs, templates, and comments.
package persistence

import (
	"context"

	"github.com/stonebase/masonflow/pkg/models"
)

// Persistence is the top-level storage contract. Implementations expose one
// repository per aggregate so each engine component depends only on the
// slice of storage it uses.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	InstanceRepository() InstanceRepository
	TemplateRepository() TemplateRepository
	CommentRepository() CommentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository owns workflow definitions and their ordered steps.
type WorkflowRepository interface {
	// Save upserts a workflow together with its steps. Steps are replaced
	// wholesale; ordering follows StepOrder ascending on read.
	Save(ctx context.Context, workflow *models.Workflow) error

	// GetByID returns nil (no error) when the workflow does not exist.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	GetAll(ctx context.Context) ([]*models.Workflow, error)

	// SaveStep inserts or updates a single step of an existing workflow
	// and bumps the workflow's updated_at.
	SaveStep(ctx context.Context, workflowID string, step *models.WorkflowStep) error

	// GetStep returns nil when the step does not exist on the workflow.
	GetStep(ctx context.Context, workflowID, stepID string) (*models.WorkflowStep, error)

	// DeleteStep removes one step; reports whether a row was removed.
	DeleteStep(ctx context.Context, workflowID, stepID string) (bool, error)

	// Delete removes the workflow and all of its steps as one unit.
	// Reports whether the workflow existed. Instances already spawned from
	// the workflow are left untouched.
	Delete(ctx context.Context, id string) (bool, error)
}

// ListInstancesOptions filters and orders instance listings. Listings are
// always newest-first by started_at.
type ListInstancesOptions struct {
	// AssignedTo limits to instances owned by the given user.
	AssignedTo string

	// Involving limits to instances the given user started or owns,
	// backing "my work" views.
	Involving string
}

// InstanceRepository owns workflow runs and their step-instance snapshots.
// Progress and status are written only through CompleteStep.
type InstanceRepository interface {
	// Create inserts the instance and snapshots the workflow's current
	// steps into pending step-instances, all atomically. Returns
	// ErrWorkflowNotFound if the workflow is missing and ErrEmptyWorkflow
	// if it has no steps.
	Create(ctx context.Context, instance *models.WorkflowInstance) error

	// GetByID returns nil when the instance does not exist.
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)

	// GetWithDetails joins the instance with its originating workflow,
	// ordered steps, and step-instances. The workflow may be nil when the
	// definition was deleted after instantiation; the step-instance
	// snapshot is still returned in full.
	GetWithDetails(ctx context.Context, id string) (*models.InstanceWithDetails, error)

	List(ctx context.Context, opts ListInstancesOptions) ([]*models.WorkflowInstance, error)

	// Reassign updates the instance owner.
	Reassign(ctx context.Context, id string, assignedTo *string) error

	// CompleteStep marks one step-instance completed, stores output and
	// notes, and recomputes the parent instance's progress and status as
	// one atomic unit serialized against concurrent sibling completions.
	CompleteStep(ctx context.Context, stepInstanceID, output, notes string) (*models.WorkflowStepInstance, error)

	// Delete removes the instance and its step-instances as one unit.
	// Reports whether the instance existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// TemplateRepository owns reusable blueprints and their usage counters.
type TemplateRepository interface {
	Save(ctx context.Context, template *models.WorkflowTemplate) error

	// GetByID returns nil when the template does not exist.
	GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)

	GetAll(ctx context.Context) ([]*models.WorkflowTemplate, error)

	// Instantiate materializes a template in one atomic unit: the new
	// workflow with its steps, the instance with its step-instance
	// snapshot, and a usage_count increment of exactly one on the
	// template. On any failure nothing is visible and the counter is
	// untouched.
	Instantiate(ctx context.Context, templateID string, workflow *models.Workflow, instance *models.WorkflowInstance) error
}

// CommentRepository owns the append-only comment log per instance.
type CommentRepository interface {
	// Add appends a comment. Returns ErrInstanceNotFound when the target
	// instance does not exist.
	Add(ctx context.Context, comment *models.WorkflowComment) error

	// ListByInstance returns comments newest-first.
	ListByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowComment, error)
}
