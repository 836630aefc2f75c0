// Package web provides HTTP handlers and REST API endpoints for the
// workflow engine.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
	"github.com/stonebase/masonflow/pkg/services"
)

type APIHandlers struct {
	definitionService *services.Definition
	instanceService   *services.Instance
	completionService *services.Completion
	templateService   *services.Template
	commentService    *services.Comment
	validator         *validator.Validate
}

func NewAPIHandlers(
	definitionService *services.Definition,
	instanceService *services.Instance,
	completionService *services.Completion,
	templateService *services.Template,
	commentService *services.Comment,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		definitionService: definitionService,
		instanceService:   instanceService,
		completionService: completionService,
		templateService:   templateService,
		commentService:    commentService,
		validator:         validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.definitionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Masonflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Masonflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.definitionService.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.definitionService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	steps := make([]*models.WorkflowStep, 0, len(req.Steps))
	for _, stepReq := range req.Steps {
		steps = append(steps, stepFromRequest(stepReq))
	}

	workflow := &models.Workflow{
		Name:              req.Name,
		Description:       req.Description,
		Category:          req.Category,
		Priority:          req.Priority,
		TriggerType:       req.TriggerType,
		CreatedBy:         req.CreatedBy,
		EstimatedDuration: req.EstimatedDuration,
		Steps:             steps,
	}

	created, err := h.definitionService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.definitionService.Update(c.Context(), id, services.UpdateWorkflowRequest{
		Name:              req.Name,
		Description:       req.Description,
		Category:          req.Category,
		Priority:          req.Priority,
		Status:            req.Status,
		EstimatedDuration: req.EstimatedDuration,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	deleted, err := h.definitionService.Delete(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	if !deleted {
		return notFound(c, "Workflow not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateStep(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req CreateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.definitionService.AddStep(c.Context(), workflowID, stepFromRequest(req))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	workflowID := c.Params("id")
	stepID := c.Params("stepId")

	if workflowID == "" || stepID == "" {
		return badRequest(c, "Workflow ID and step ID are required")
	}

	var req UpdateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.definitionService.UpdateStep(c.Context(), workflowID, stepID, services.UpdateStepRequest{
		Name:              req.Name,
		Description:       req.Description,
		StepType:          req.StepType,
		RequiredRole:      req.RequiredRole,
		EstimatedDuration: req.EstimatedDuration,
		IsOptional:        req.IsOptional,
		AssigneeID:        req.AssigneeID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	workflowID := c.Params("id")
	stepID := c.Params("stepId")

	if workflowID == "" || stepID == "" {
		return badRequest(c, "Workflow ID and step ID are required")
	}

	err := h.definitionService.DeleteStep(c.Context(), workflowID, stepID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetInstances(c fiber.Ctx) error {
	opts := persistence.ListInstancesOptions{
		AssignedTo: c.Query("assigned_to"),
		Involving:  c.Query("involving"),
	}

	instances, err := h.instanceService.FetchAll(c.Context(), opts)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(instances)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	details, err := h.instanceService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsInstanceNotFound(err) {
			return notFound(c, "Workflow instance not found")
		}

		return internalError(c, err)
	}

	return c.JSON(details)
}

func (h *APIHandlers) CreateInstance(c fiber.Ctx) error {
	var req CreateInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance := &models.WorkflowInstance{
		WorkflowID:   req.WorkflowID,
		InstanceName: req.InstanceName,
		StartedBy:    req.StartedBy,
		AssignedTo:   req.AssignedTo,
		ClientID:     req.ClientID,
		QuoteID:      req.QuoteID,
		ProductID:    req.ProductID,
		DueDate:      req.DueDate,
		Priority:     req.Priority,
	}

	created, err := h.instanceService.Create(c.Context(), instance)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) ReassignInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	var req ReassignInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.instanceService.Reassign(c.Context(), id, req.AssignedTo)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	deleted, err := h.instanceService.Delete(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	if !deleted {
		return notFound(c, "Workflow instance not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CompleteStepInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Step instance ID is required")
	}

	var req CompleteStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.completionService.CompleteStep(c.Context(), id, req.Output, req.Notes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	templates, err := h.templateService.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(templates)
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	template, err := h.templateService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsTemplateNotFound(err) {
			return notFound(c, "Template not found")
		}

		return internalError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) CreateTemplate(c fiber.Ctx) error {
	var req CreateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template := &models.WorkflowTemplate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Blueprint:   req.Blueprint,
		CreatedBy:   req.CreatedBy,
	}

	created, err := h.templateService.Create(c.Context(), template)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) InstantiateTemplate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	var req InstantiateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.templateService.Instantiate(c.Context(), id, services.InstantiateRequest{
		StartedBy:    req.StartedBy,
		InstanceName: req.InstanceName,
		AssignedTo:   req.AssignedTo,
		ClientID:     req.ClientID,
		QuoteID:      req.QuoteID,
		ProductID:    req.ProductID,
		DueDate:      req.DueDate,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) GetComments(c fiber.Ctx) error {
	instanceID := c.Params("id")
	if instanceID == "" {
		return badRequest(c, "Instance ID is required")
	}

	comments, err := h.commentService.FetchByInstance(c.Context(), instanceID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(comments)
}

func (h *APIHandlers) CreateComment(c fiber.Ctx) error {
	instanceID := c.Params("id")
	if instanceID == "" {
		return badRequest(c, "Instance ID is required")
	}

	var req CreateCommentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	comment := &models.WorkflowComment{
		AuthorID: req.AuthorID,
		Body:     req.Body,
	}

	created, err := h.commentService.Add(c.Context(), instanceID, comment)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func stepFromRequest(req CreateStepRequest) *models.WorkflowStep {
	return &models.WorkflowStep{
		StepOrder:         req.StepOrder,
		Name:              req.Name,
		Description:       req.Description,
		StepType:          req.StepType,
		RequiredRole:      req.RequiredRole,
		EstimatedDuration: req.EstimatedDuration,
		IsOptional:        req.IsOptional,
		AssigneeID:        req.AssigneeID,
	}
}
