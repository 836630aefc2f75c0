// Package memory provides a mutex-guarded in-memory persistence
// implementation. It backs unit tests and memory:// database URLs and
// honors the same atomicity contract as the SQL implementation: every
// multi-row operation runs under one write-lock hold.
package memory

import (
	"context"
	"sync"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
)

// Persistence implements persistence.Persistence with in-process maps.
type Persistence struct {
	store        *store
	workflowRepo *WorkflowRepository
	instanceRepo *InstanceRepository
	templateRepo *TemplateRepository
	commentRepo  *CommentRepository
}

// store is the shared state behind every repository. The single mutex is
// what serializes progress recomputes against sibling completions.
type store struct {
	mu sync.RWMutex

	workflows     map[string]*models.Workflow
	instances     map[string]*models.WorkflowInstance
	stepInstances map[string]*models.WorkflowStepInstance
	templates     map[string]*models.WorkflowTemplate
	comments      map[string][]*models.WorkflowComment // keyed by instance ID
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	s := &store{
		workflows:     make(map[string]*models.Workflow),
		instances:     make(map[string]*models.WorkflowInstance),
		stepInstances: make(map[string]*models.WorkflowStepInstance),
		templates:     make(map[string]*models.WorkflowTemplate),
		comments:      make(map[string][]*models.WorkflowComment),
	}

	return &Persistence{
		store:        s,
		workflowRepo: &WorkflowRepository{store: s},
		instanceRepo: &InstanceRepository{store: s},
		templateRepo: &TemplateRepository{store: s},
		commentRepo:  &CommentRepository{store: s},
	}
}

// Close is a no-op for in-memory persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck always succeeds for in-memory persistence.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// WorkflowRepository returns the workflow definition repository.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// InstanceRepository returns the workflow run repository.
func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

// TemplateRepository returns the template repository.
func (p *Persistence) TemplateRepository() persistence.TemplateRepository {
	return p.templateRepo
}

// CommentRepository returns the comment log repository.
func (p *Persistence) CommentRepository() persistence.CommentRepository {
	return p.commentRepo
}
