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

// CommentRepository implements persistence.CommentRepository in memory.
type CommentRepository struct {
	store *store
}

// Add appends a comment to an instance's log.
func (r *CommentRepository) Add(_ context.Context, comment *models.WorkflowComment) error {
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

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, ok := r.store.instances[comment.WorkflowInstanceID]
	if !ok {
		return persistence.NewInstanceError("AddComment", comment.WorkflowInstanceID, persistence.ErrInstanceNotFound)
	}

	clone := *comment
	r.store.comments[comment.WorkflowInstanceID] = append(r.store.comments[comment.WorkflowInstanceID], &clone)

	return nil
}

// ListByInstance returns comments newest-first.
func (r *CommentRepository) ListByInstance(_ context.Context, instanceID string) ([]*models.WorkflowComment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stored := r.store.comments[instanceID]

	comments := make([]*models.WorkflowComment, 0, len(stored))
	for _, comment := range stored {
		clone := *comment
		comments = append(comments, &clone)
	}

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})

	return comments, nil
}
