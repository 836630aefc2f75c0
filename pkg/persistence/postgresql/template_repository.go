package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
)

// TemplateRepository handles workflow template database operations.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

// Save inserts a template. Templates are read-only after creation except
// for the usage counter, so there is no upsert path.
func (r *TemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
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

	blueprintJSON, err := json.Marshal(template.Blueprint)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint: %w", err)
	}

	query := `
		INSERT INTO workflow_templates (id, name, description, category,
blueprint, usage_count, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		template.ID,
		template.Name,
		template.Description,
		template.Category,
		blueprintJSON,
		template.UsageCount,
		template.CreatedBy,
		template.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	return nil
}

// GetByID returns a template, or nil if absent.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	row := r.db.QueryRowContext(ctx, selectTemplateQuery+" WHERE id = $1", id)

	template, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	return template, nil
}

// GetAll returns all templates, newest first.
func (r *TemplateRepository) GetAll(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	rows, err := r.db.QueryContext(ctx, selectTemplateQuery+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	templates := make([]*models.WorkflowTemplate, 0)

	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}

		templates = append(templates, template)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// Instantiate materializes a template in one transaction: the new workflow
// with its steps, the instance with its step-instance snapshot, and a
// usage_count increment of exactly one. A failure at any point rolls the
// whole sequence back, so callers never observe an orphaned workflow and
// the counter only moves on full success.
func (r *TemplateRepository) Instantiate(ctx context.Context, templateID string, workflow *models.Workflow, instance *models.WorkflowInstance) error {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Increment first: locks the template row for the duration of the
	// transaction and confirms the template still exists.
	result, err := tx.ExecContext(ctx,
		"UPDATE workflow_templates SET usage_count = usage_count + 1 WHERE id = $1",
		templateID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment usage count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = persistence.NewTemplateError("Instantiate", templateID, persistence.ErrTemplateNotFound)

		return err
	}

	workflowQuery := `
		INSERT INTO workflows (id, name, description, category, priority,
trigger_type, status, created_by, estimated_duration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
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
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	err = insertSteps(ctx, tx, workflow.ID, workflow.Steps)
	if err != nil {
		return err
	}

	err = insertInstance(ctx, tx, instance)
	if err != nil {
		return err
	}

	err = insertStepInstances(ctx, tx, instance, workflow.Steps)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const selectTemplateQuery = `
	SELECT
		id
	  , name
	  , description
	  , category
	  , blueprint
	  , usage_count
	  , created_by
	  , created_at
	FROM workflow_templates
`

func scanTemplate(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowTemplate, error) {
	var (
		template      models.WorkflowTemplate
		blueprintJSON []byte
	)

	err := scanner.Scan(
		&template.ID,
		&template.Name,
		&template.Description,
		&template.Category,
		&blueprintJSON,
		&template.UsageCount,
		&template.CreatedBy,
		&template.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(blueprintJSON, &template.Blueprint)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal blueprint: %w", err)
	}

	return &template, nil
}
