package models

// Role names mirror the CRM's three-tier access model.
const (
	RoleAdmin       = "admin"
	RoleSalesLeader = "sales_leader"
	RoleSalesRep    = "sales_rep"
)

// WorkflowStep is one unit of work within a definition. StepOrder is
// caller-supplied and must be strictly increasing per workflow; gaps are
// allowed so callers may number 10/20/30.
type WorkflowStep struct {
	ID                string  `json:"id"`
	WorkflowID        string  `json:"workflow_id"`
	StepOrder         int     `json:"step_order"         validate:"required,min=1"`
	Name              string  `json:"name"               validate:"required"`
	Description       string  `json:"description"`
	StepType          string  `json:"step_type"          validate:"required"`
	RequiredRole      string  `json:"required_role"      validate:"required,oneof=admin sales_leader sales_rep"`
	EstimatedDuration string  `json:"estimated_duration"`
	IsOptional        bool    `json:"is_optional"`
	AssigneeID        *string `json:"assignee_id,omitempty"` // Default assignee for new step-instances
}
