package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/otelhelper"
	"github.com/stonebase/masonflow/pkg/persistence"
)

// ErrStepInstanceNotFound is returned when a step-instance is not found.
var ErrStepInstanceNotFound = persistence.ErrStepInstanceNotFound

// Completion drives step completion on running instances. Completing a step
// and recomputing the parent's progress and status is one atomic unit in
// the repository; this service adds tracing and the refreshed read model.
type Completion struct {
	persistence persistence.Persistence
	tracer      trace.Tracer
}

// NewCompletion creates a new completion service. A nil tracer disables
// tracing.
func NewCompletion(persistence persistence.Persistence, tracer trace.Tracer) *Completion {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("completion")
	}

	return &Completion{
		persistence: persistence,
		tracer:      tracer,
	}
}

// CompleteStepResult is what a completion returns: the completed
// step-instance and the parent instance with recomputed progress.
type CompleteStepResult struct {
	StepInstance *models.WorkflowStepInstance `json:"step_instance"`
	Instance     *models.WorkflowInstance     `json:"instance"`
}

// CompleteStep marks one step-instance completed with the given output and
// notes. Completing an already completed step is rejected by the
// repository with ErrStepInstanceNotFound semantics preserved for missing
// rows. Concurrent sibling completions serialize; the parent instance ends
// at progress 100 and status completed exactly when every step is done.
func (c *Completion) CompleteStep(ctx context.Context, stepInstanceID, output, notes string) (*CompleteStepResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "completion.complete_step",
		attribute.String(otelhelper.StepInstanceIDKey, stepInstanceID),
	)
	defer span.End()

	stepInstance, err := c.persistence.InstanceRepository().CompleteStep(ctx, stepInstanceID, output, notes)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to complete step: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, stepInstance.WorkflowInstanceID))

	instance, err := c.persistence.InstanceRepository().GetByID(ctx, stepInstance.WorkflowInstanceID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to reload instance after completion: %w", err)
	}

	if instance == nil {
		err = persistence.NewInstanceError("CompleteStep", stepInstance.WorkflowInstanceID, ErrInstanceNotFound)
		otelhelper.SetError(span, err)

		return nil, err
	}

	return &CompleteStepResult{
		StepInstance: stepInstance,
		Instance:     instance,
	}, nil
}
