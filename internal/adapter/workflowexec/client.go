// Package workflowexec provides an HTTP client for the workflow-execution
// service, which hosts the role-based task analysis and the company-wide
// task consolidation flows.
package workflowexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskfolio/autoassess/internal/domain"
	"github.com/taskfolio/autoassess/internal/port/workflow"
	"github.com/taskfolio/autoassess/internal/resilience"
)

// Client talks to the workflow-execution service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a workflow-execution client with the given per-call timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type roleAnalysisResponse struct {
	Outputs struct {
		TaskAnalysis struct {
			Rows []workflow.RoleTask `json:"rows"`
		} `json:"task_analysis"`
	} `json:"outputs"`
}

type consolidationResponse struct {
	Outputs struct {
		TaskTable struct {
			Rows []workflow.ConsolidatedTask `json:"rows"`
		} `json:"task_table"`
	} `json:"outputs"`
}

// RoleAnalysis runs the role-assessment flow for (company, role) and returns
// the nested task-analysis table. An unknown role maps to domain.ErrNotFound.
func (c *Client) RoleAnalysis(ctx context.Context, company, role string) ([]workflow.RoleTask, error) {
	body, err := json.Marshal(map[string]string{"company": company, "role": role})
	if err != nil {
		return nil, fmt.Errorf("marshal role analysis: %w", err)
	}

	data, err := c.doRequest(ctx, "/api/v1/flows/role-analysis", body)
	if err != nil {
		return nil, fmt.Errorf("role analysis %q/%q: %w", company, role, err)
	}

	var resp roleAnalysisResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal role analysis: %w", err)
	}
	return resp.Outputs.TaskAnalysis.Rows, nil
}

// Consolidate runs the company-wide task consolidator and returns its ranked
// task table.
func (c *Client) Consolidate(ctx context.Context, company string) ([]workflow.ConsolidatedTask, error) {
	body, err := json.Marshal(map[string]string{"company": company})
	if err != nil {
		return nil, fmt.Errorf("marshal consolidation: %w", err)
	}

	data, err := c.doRequest(ctx, "/api/v1/flows/task-consolidation", body)
	if err != nil {
		return nil, fmt.Errorf("consolidation %q: %w", company, err)
	}

	var resp consolidationResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal consolidation: %w", err)
	}
	return resp.Outputs.TaskTable.Rows, nil
}

func (c *Client) doRequest(ctx context.Context, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusNotFound {
			return domain.ErrNotFound
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("workflow-execution API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
