package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// runStatus mirrors the sosharvest run status model.
type runStatus struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Checkpoint string `json:"checkpoint"`
	Result     *struct {
		OK             bool   `json:"ok"`
		Total          *int   `json:"total"`
		PagesProcessed *int   `json:"pagesProcessed"`
		Reason         string `json:"reason"`
	} `json:"result"`
}

// runResponse mirrors the sosharvest /runs response.
type runResponse struct {
	Success bool       `json:"success"`
	Run     *runStatus `json:"run"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// client talks to the sosharvest HTTP API.
type client struct {
	http   *http.Client
	apiURL string
	apiKey string
}

func main() {
	apiURL := os.Getenv("SOSH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SOSH_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SOSH_API_KEY is required")
		os.Exit(1)
	}
	c := &client{
		http:   &http.Client{Timeout: 60 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
	}

	s := server.NewMCPServer(
		"sosharvest",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	startTool := mcp.NewTool("start_harvest",
		mcp.WithDescription("Start a Registered Agent activity harvest on Texas SOSDirect. Returns the run id immediately; the harvest continues in the background. Only one harvest runs at a time."),
		mcp.WithString("target_date",
			mcp.Description("Filing date to search, MM/DD/YYYY or YYYY-MM-DD. Empty uses the portal default."),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum number of result pages to harvest (default: server setting, 250)"),
		),
		mcp.WithString("search_wildcard",
			mcp.Description("Name search wildcard (default: '*.*')"),
		),
		mcp.WithString("account",
			mcp.Description("Payment/client account value or label to select when the portal asks"),
		),
	)
	s.AddTool(startTool, c.handleStart)

	getTool := mcp.NewTool("get_harvest",
		mcp.WithDescription("Get the current status of a harvest run."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run id returned by start_harvest"),
		),
	)
	s.AddTool(getTool, c.handleGet)

	waitTool := mcp.NewTool("wait_harvest",
		mcp.WithDescription("Wait until a harvest run finishes and return its result summary."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run id returned by start_harvest"),
		),
		mcp.WithNumber("timeout_seconds",
			mcp.Description("How long to wait before giving up (default: 600)"),
		),
	)
	s.AddTool(waitTool, c.handleWait)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func (c *client) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := map[string]any{}
	if v := request.GetString("target_date", ""); v != "" {
		payload["targetDate"] = v
	}
	if v := request.GetInt("max_pages", 0); v > 0 {
		payload["maxPages"] = v
	}
	if v := request.GetString("search_wildcard", ""); v != "" {
		payload["searchWildcard"] = v
	}
	if v := request.GetString("account", ""); v != "" {
		payload["paymentClientAccountValue"] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("start request failed: %v", err)), nil
	}
	if errResult := apiError(resp, "start failed"); errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Harvest started.\nRun: %s\nState: %s", resp.Run.ID, resp.Run.State)), nil
}

func (c *client) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+id, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
	}
	if errResult := apiError(resp, "lookup failed"); errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(formatRun(resp.Run)), nil
}

func (c *client) handleWait(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	timeout := time.Duration(request.GetInt("timeout_seconds", 600)) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		resp, err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+id, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run failed: %v", err)), nil
		}
		if errResult := apiError(resp, "lookup failed"); errResult != nil {
			return errResult, nil
		}
		if resp.Run.State != "running" {
			return mcp.NewToolResultText(formatRun(resp.Run)), nil
		}

		select {
		case <-ctx.Done():
			return mcp.NewToolResultError(fmt.Sprintf("run %s still running after %s", id, timeout)), nil
		case <-ticker.C:
		}
	}
}

// do sends a request to the API and decodes the run response.
func (c *client) do(ctx context.Context, method, path string, body io.Reader) (*runResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out runResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &out, nil
}

func apiError(resp *runResponse, fallback string) *mcp.CallToolResult {
	if resp.Success && resp.Run != nil {
		return nil
	}
	msg := fallback
	if resp.Error != nil {
		msg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
	}
	return mcp.NewToolResultError(msg)
}

func formatRun(r *runStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run: %s\nState: %s\nStarted: %s\n", r.ID, r.State, r.StartedAt)
	if r.FinishedAt != "" {
		fmt.Fprintf(&sb, "Finished: %s\n", r.FinishedAt)
	}
	if r.Checkpoint != "" {
		fmt.Fprintf(&sb, "Checkpoint: %s\n", r.Checkpoint)
	}
	if res := r.Result; res != nil {
		if res.OK {
			total, pages := 0, 0
			if res.Total != nil {
				total = *res.Total
			}
			if res.PagesProcessed != nil {
				pages = *res.PagesProcessed
			}
			fmt.Fprintf(&sb, "\nResult: ok, %d rows from %d pages\n", total, pages)
		} else {
			fmt.Fprintf(&sb, "\nResult: failed: %s\n", res.Reason)
		}
	}
	fmt.Fprintf(&sb, "\nArtifacts: /api/v1/runs/%s/artifacts/RESULT.json", r.ID)
	return sb.String()
}
