package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
)

// WorkflowRepository handles workflow definition database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflow definitions with their steps, newest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , category
		  , priority
		  , trigger_type
		  , status
		  , created_by
		  , estimated_duration
		  , created_at
		  , updated_at
		FROM workflows
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		workflow.Steps, err = r.loadSteps(ctx, workflow.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow steps: %w", err)
		}
	}

	return workflows, nil
}

// GetByID returns a workflow with its ordered steps, or nil if absent.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , category
		  , priority
		  , trigger_type
		  , status
		  , created_by
		  , estimated_duration
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.Steps, err = r.loadSteps(ctx, workflow.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow steps: %w", err)
	}

	return workflow, nil
}

// Save upserts a workflow and replaces its steps wholesale.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, name, description, category, priority,
trigger_type, status, created_by, estimated_duration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			trigger_type = EXCLUDED.trigger_type,
			status = EXCLUDED.status,
			estimated_duration = EXCLUDED.estimated_duration,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Category,
		workflow.Priority,
		workflow.TriggerType,
		workflow.Status,
		workflow.CreatedBy,
		workflow.EstimatedDuration,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	err = insertSteps(ctx, tx, workflow.ID, workflow.Steps)
	if err != nil {
		return fmt.Errorf("failed to save workflow steps: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveStep upserts a single step of an existing workflow and bumps the
// workflow's updated_at.
func (r *WorkflowRepository) SaveStep(ctx context.Context, workflowID string, step *models.WorkflowStep) error {
	if step.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate step ID: %w", err)
		}

		step.ID = id.String()
	}

	step.WorkflowID = workflowID

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx,
		"UPDATE workflows SET updated_at = $1 WHERE id = $2",
		time.Now().UTC(), workflowID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = persistence.NewWorkflowError("SaveStep", workflowID, persistence.ErrWorkflowNotFound)

		return err
	}

	stepQuery := `
		INSERT INTO workflow_steps (id, workflow_id, step_order, name,
description, step_type, required_role, estimated_duration, is_optional, assignee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			step_order = EXCLUDED.step_order,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			step_type = EXCLUDED.step_type,
			required_role = EXCLUDED.required_role,
			estimated_duration = EXCLUDED.estimated_duration,
			is_optional = EXCLUDED.is_optional,
			assignee_id = EXCLUDED.assignee_id
	`

	_, err = tx.ExecContext(ctx, stepQuery,
		step.ID,
		step.WorkflowID,
		step.StepOrder,
		step.Name,
		step.Description,
		step.StepType,
		step.RequiredRole,
		step.EstimatedDuration,
		step.IsOptional,
		step.AssigneeID,
	)
	if err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetStep returns one step of a workflow, or nil if absent.
func (r *WorkflowRepository) GetStep(ctx context.Context, workflowID, stepID string) (*models.WorkflowStep, error) {
	query := `
		SELECT id, workflow_id, step_order, name, description, step_type,
			required_role, estimated_duration, is_optional, assignee_id
		FROM workflow_steps
		WHERE workflow_id = $1 AND id = $2
	`

	var step models.WorkflowStep

	err := r.db.QueryRowContext(ctx, query, workflowID, stepID).Scan(
		&step.ID,
		&step.WorkflowID,
		&step.StepOrder,
		&step.Name,
		&step.Description,
		&step.StepType,
		&step.RequiredRole,
		&step.EstimatedDuration,
		&step.IsOptional,
		&step.AssigneeID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan step: %w", err)
	}

	return &step, nil
}

// DeleteStep removes one step and reports whether a row was removed.
func (r *WorkflowRepository) DeleteStep(ctx context.Context, workflowID, stepID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM workflow_steps WHERE workflow_id = $1 AND id = $2",
		workflowID, stepID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete step: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Delete removes a workflow; its steps go with it through the cascading
// foreign key. Instances already spawned from the workflow keep their own
// step-instance snapshot and are not touched.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	query := `
		SELECT id, workflow_id, step_order, name, description, step_type,
			required_role, estimated_duration, is_optional, assignee_id
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]*models.WorkflowStep, 0)

	for rows.Next() {
		var step models.WorkflowStep

		err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.StepOrder,
			&step.Name,
			&step.Description,
			&step.StepType,
			&step.RequiredRole,
			&step.EstimatedDuration,
			&step.IsOptional,
			&step.AssigneeID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

func insertSteps(ctx context.Context, tx *sql.Tx, workflowID string, steps []*models.WorkflowStep) error {
	query := `
		INSERT INTO workflow_steps (id, workflow_id, step_order, name,
description, step_type, required_role, estimated_duration, is_optional, assignee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, step := range steps {
		if step.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate step ID: %w", err)
			}

			step.ID = id.String()
		}

		step.WorkflowID = workflowID

		_, err := tx.ExecContext(ctx, query,
			step.ID,
			step.WorkflowID,
			step.StepOrder,
			step.Name,
			step.Description,
			step.StepType,
			step.RequiredRole,
			step.EstimatedDuration,
			step.IsOptional,
			step.AssigneeID,
		)
		if err != nil {
			return fmt.Errorf("failed to save step: %w", err)
		}
	}

	return nil
}

func scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var workflow models.Workflow

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Category,
		&workflow.Priority,
		&workflow.TriggerType,
		&workflow.Status,
		&workflow.CreatedBy,
		&workflow.EstimatedDuration,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}
