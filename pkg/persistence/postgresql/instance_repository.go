package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
)

// InstanceRepository handles workflow run database operations. Progress and
// status of a run are only ever written inside CompleteStep, which holds a
// row lock on the run for the whole read-recount-write sequence.
type InstanceRepository struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{
		db:           db,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(db, logger),
	}
}

// Create inserts the instance and snapshots the workflow's current steps
// into pending step-instances, all in one transaction.
func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	steps, err := lockWorkflowSteps(ctx, tx, instance.WorkflowID)
	if err != nil {
		return err
	}

	err = insertInstance(ctx, tx, instance)
	if err != nil {
		return err
	}

	err = insertStepInstances(ctx, tx, instance, steps)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// lockWorkflowSteps reads the workflow's steps inside the transaction,
// holding a share lock on the workflow row so a concurrent definition edit
// cannot slip between the snapshot read and the step-instance inserts.
func lockWorkflowSteps(ctx context.Context, tx *sql.Tx, workflowID string) ([]*models.WorkflowStep, error) {
	var id string

	err := tx.QueryRowContext(ctx,
		"SELECT id FROM workflows WHERE id = $1 FOR SHARE", workflowID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("Create", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to lock workflow: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, step_order, assignee_id
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_order ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var steps []*models.WorkflowStep

	for rows.Next() {
		var step models.WorkflowStep

		err := rows.Scan(&step.ID, &step.StepOrder, &step.AssigneeID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	if len(steps) == 0 {
		return nil, persistence.NewWorkflowError("Create", workflowID, persistence.ErrEmptyWorkflow)
	}

	return steps, nil
}

func insertInstance(ctx context.Context, tx *sql.Tx, instance *models.WorkflowInstance) error {
	query := `
		INSERT INTO workflow_instances (id, workflow_id, started_by,
instance_name, assigned_to, client_id, quote_id, product_id, due_date,
priority, status, progress, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := tx.ExecContext(ctx, query,
		instance.ID,
		instance.WorkflowID,
		instance.StartedBy,
		instance.InstanceName,
		instance.AssignedTo,
		instance.ClientID,
		instance.QuoteID,
		instance.ProductID,
		instance.DueDate,
		instance.Priority,
		instance.Status,
		instance.Progress,
		instance.StartedAt,
		instance.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}

	return nil
}

func insertStepInstances(ctx context.Context, tx *sql.Tx, instance *models.WorkflowInstance, steps []*models.WorkflowStep) error {
	query := `
		INSERT INTO workflow_step_instances (id, workflow_instance_id,
step_id, status, assigned_to, completed_at, output, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, step := range steps {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate step-instance ID: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			id.String(),
			instance.ID,
			step.ID,
			models.StepInstanceStatusPending,
			step.AssigneeID,
			nil,
			"",
			"",
		)
		if err != nil {
			return fmt.Errorf("failed to save step-instance: %w", err)
		}
	}

	return nil
}

// GetByID returns an instance, or nil if absent.
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx, selectInstanceQuery+" WHERE id = $1", id)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}

// GetWithDetails joins the instance with its originating workflow, ordered
// steps, and step-instances. The workflow is nil when the definition was
// deleted after instantiation; the snapshot is returned regardless.
func (r *InstanceRepository) GetWithDetails(ctx context.Context, id string) (*models.InstanceWithDetails, error) {
	instance, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if instance == nil {
		return nil, nil
	}

	details := &models.InstanceWithDetails{WorkflowInstance: *instance}

	details.Workflow, err = r.workflowRepo.GetByID(ctx, instance.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load originating workflow: %w", err)
	}

	stepsByID := make(map[string]*models.WorkflowStep)
	if details.Workflow != nil {
		for _, step := range details.Workflow.Steps {
			stepsByID[step.ID] = step
		}
	}

	stepInstances, err := r.loadStepInstances(ctx, instance.ID)
	if err != nil {
		return nil, err
	}

	details.StepInstances = make([]*models.StepInstanceDetail, 0, len(stepInstances))
	for _, si := range stepInstances {
		details.StepInstances = append(details.StepInstances, &models.StepInstanceDetail{
			WorkflowStepInstance: *si,
			Step:                 stepsByID[si.StepID],
		})
	}

	return details, nil
}

// List returns instances newest-first, optionally filtered by owner or by
// "started by or assigned to" for my-work views.
func (r *InstanceRepository) List(ctx context.Context, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	query := selectInstanceQuery
	args := []any{}

	switch {
	case opts.Involving != "":
		query += " WHERE started_by = $1 OR assigned_to = $1"
		args = append(args, opts.Involving)
	case opts.AssignedTo != "":
		query += " WHERE assigned_to = $1"
		args = append(args, opts.AssignedTo)
	}

	query += " ORDER BY started_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

// Reassign updates the instance owner.
func (r *InstanceRepository) Reassign(ctx context.Context, id string, assignedTo *string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflow_instances SET assigned_to = $1 WHERE id = $2",
		assignedTo, id,
	)
	if err != nil {
		return fmt.Errorf("failed to reassign instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewInstanceError("Reassign", id, persistence.ErrInstanceNotFound)
	}

	return nil
}

// CompleteStep marks one step-instance completed and recomputes the parent
// run's progress and status, all under a row lock on the run so concurrent
// sibling completions cannot race the recount.
func (r *InstanceRepository) CompleteStep(ctx context.Context, stepInstanceID, output, notes string) (*models.WorkflowStepInstance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var instanceID string

	err = tx.QueryRowContext(ctx,
		"SELECT workflow_instance_id FROM workflow_step_instances WHERE id = $1",
		stepInstanceID,
	).Scan(&instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewInstanceError("CompleteStep", stepInstanceID, persistence.ErrStepInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to resolve step-instance: %w", err)
	}

	// Serialize against sibling completions on the same run.
	_, err = tx.ExecContext(ctx,
		"SELECT id FROM workflow_instances WHERE id = $1 FOR UPDATE", instanceID,
	)
	if err != nil {
		return nil, wrapConflict(fmt.Errorf("failed to lock instance: %w", err))
	}

	now := time.Now().UTC()

	stepInstance := &models.WorkflowStepInstance{
		ID:                 stepInstanceID,
		WorkflowInstanceID: instanceID,
		Status:             models.StepInstanceStatusCompleted,
		CompletedAt:        &now,
		Output:             output,
		Notes:              notes,
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE workflow_step_instances
		SET status = $1, completed_at = $2, output = $3, notes = $4
		WHERE id = $5
		RETURNING step_id, assigned_to
	`,
		stepInstance.Status, stepInstance.CompletedAt, output, notes, stepInstanceID,
	).Scan(&stepInstance.StepID, &stepInstance.AssignedTo)
	if err != nil {
		return nil, wrapConflict(fmt.Errorf("failed to complete step-instance: %w", err))
	}

	var completed, total int

	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'completed'), COUNT(*)
		FROM workflow_step_instances
		WHERE workflow_instance_id = $1
	`, instanceID).Scan(&completed, &total)
	if err != nil {
		return nil, fmt.Errorf("failed to count step-instances: %w", err)
	}

	progress := models.ProgressFor(completed, total)

	status := models.InstanceStatusInProgress
	var completedAt *time.Time

	if progress == 100 {
		status = models.InstanceStatusCompleted
		completedAt = &now
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_instances
		SET progress = $1, status = $2, completed_at = $3
		WHERE id = $4
	`, progress, status, completedAt, instanceID)
	if err != nil {
		return nil, wrapConflict(fmt.Errorf("failed to update instance progress: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return nil, wrapConflict(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return stepInstance, nil
}

// Delete removes the instance; step-instances and comments go with it
// through the cascading foreign keys. Reports whether the instance existed.
func (r *InstanceRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_instances WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *InstanceRepository) loadStepInstances(ctx context.Context, instanceID string) ([]*models.WorkflowStepInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_instance_id, step_id, status, assigned_to,
			completed_at, output, notes
		FROM workflow_step_instances
		WHERE workflow_instance_id = $1
		ORDER BY id ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step-instances: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	stepInstances := make([]*models.WorkflowStepInstance, 0)

	for rows.Next() {
		var si models.WorkflowStepInstance

		err := rows.Scan(
			&si.ID,
			&si.WorkflowInstanceID,
			&si.StepID,
			&si.Status,
			&si.AssignedTo,
			&si.CompletedAt,
			&si.Output,
			&si.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step-instance: %w", err)
		}

		stepInstances = append(stepInstances, &si)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating step-instances: %w", err)
	}

	return stepInstances, nil
}

const selectInstanceQuery = `
	SELECT
		id
	  , workflow_id
	  , started_by
	  , instance_name
	  , assigned_to
	  , client_id
	  , quote_id
	  , product_id
	  , due_date
	  , priority
	  , status
	  , progress
	  , started_at
	  , completed_at
	FROM workflow_instances
`

func scanInstance(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance

	err := scanner.Scan(
		&instance.ID,
		&instance.WorkflowID,
		&instance.StartedBy,
		&instance.InstanceName,
		&instance.AssignedTo,
		&instance.ClientID,
		&instance.QuoteID,
		&instance.ProductID,
		&instance.DueDate,
		&instance.Priority,
		&instance.Status,
		&instance.Progress,
		&instance.StartedAt,
		&instance.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &instance, nil
}

// wrapConflict maps postgres serialization and deadlock failures onto the
// retryable conflict sentinel; everything else passes through unchanged.
func wrapConflict(err error) error {
	var pqErr *pq.Error

	if errors.As(err, &pqErr) {
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return fmt.Errorf("%w: %w", persistence.ErrConcurrencyConflict, err)
		}
	}

	return err
}
