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

// CommentRepository handles the append-only comment log.
type CommentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(db *sql.DB, logger *slog.Logger) *CommentRepository {
	return &CommentRepository{db: db, logger: logger}
}

// Add appends a comment to an instance's log.
func (r *CommentRepository) Add(ctx context.Context, comment *models.WorkflowComment) error {
	if comment.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate comment ID: %w", err)
		}

		comment.ID = id.String()
	}

	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workflow_comments (id, workflow_instance_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.WorkflowInstanceID,
		comment.AuthorID,
		comment.Body,
		comment.CreatedAt,
	)
	if err != nil {
		// The foreign key doubles as the existence check for the instance.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return persistence.NewInstanceError("AddComment", comment.WorkflowInstanceID, persistence.ErrInstanceNotFound)
		}

		return fmt.Errorf("failed to save comment: %w", err)
	}

	return nil
}

// ListByInstance returns comments newest-first.
func (r *CommentRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowComment, error) {
	query := `
		SELECT id, workflow_instance_id, author_id, body, created_at
		FROM workflow_comments
		WHERE workflow_instance_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	comments := make([]*models.WorkflowComment, 0)

	for rows.Next() {
		var comment models.WorkflowComment

		err := rows.Scan(
			&comment.ID,
			&comment.WorkflowInstanceID,
			&comment.AuthorID,
			&comment.Body,
			&comment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}

		comments = append(comments, &comment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}
