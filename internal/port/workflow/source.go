// Package workflow defines the port for the upstream workflow-execution
// service hosting the role-analysis and task-consolidation flows.
package workflow

import "context"

// RoleTask is one row of the role-analysis task table.
type RoleTask struct {
	Task     string `json:"task"`
	Category string `json:"automation_category"`
}

// ConsolidatedTask is one row of the company-wide consolidation table.
// Roles is a comma-separated list of role names the task applies to.
type ConsolidatedTask struct {
	Task           string `json:"task"`
	AutomationType string `json:"automation_type"`
	Roles          string `json:"roles"`
}

// Source exposes the two upstream task-discovery flows.
type Source interface {
	RoleAnalysis(ctx context.Context, company, role string) ([]RoleTask, error)
	Consolidate(ctx context.Context, company string) ([]ConsolidatedTask, error)
}
