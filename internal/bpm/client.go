// Package bpm is the HTTP client for the remote BPM middleware. The middleware
// owns process state; this client only issues single synchronous requests and
// normalizes failures. Retries, if any, belong to the caller.
package bpm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds the immutable client configuration. The base URL is fixed at
// construction; there is no runtime-mutable endpoint state.
type Config struct {
	BaseURL      string
	SourceSystem string
	Environment  string
	Timeout      time.Duration
}

// Client talks to the BPM middleware. It is stateless aside from its
// configuration and safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a BPM middleware client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Environment returns the environment tag sent with every request.
func (c *Client) Environment() string { return c.cfg.Environment }

// SourceSystem returns the source system tag sent on process invocation.
func (c *Client) SourceSystem() string { return c.cfg.SourceSystem }

// QueryProcessInfo fetches the authoritative representation of one process.
// Returns ErrProcessNotFound when the middleware does not know the process.
func (c *Client) QueryProcessInfo(ctx context.Context, processSerialNo, processCode string) (*ProcessInfo, error) {
	const op = "query process info"

	body := processInfoRequest{
		ProcessSerialNo: processSerialNo,
		ProcessCode:     processCode,
		Environment:     c.cfg.Environment,
	}

	var resp processInfoResponse
	if err := c.postJSON(ctx, op, "/api/bpm/sync-process-info", body, &resp); err != nil {
		return nil, err
	}

	switch {
	case resp.Code == codeOK && resp.ProcessInfo != nil:
		return resp.ProcessInfo, nil
	case resp.Code == codeOK || resp.Code == "404":
		// Reachable and well-formed, just no such process.
		return nil, ErrProcessNotFound
	default:
		c.logger.Warn("Process info query rejected",
			zap.String("process_serial_no", processSerialNo),
			zap.String("code", resp.Code),
			zap.String("msg", resp.Msg))
		return nil, &RemoteError{Op: op, Code: resp.Code, Message: resp.Msg}
	}
}

// InvokeProcess starts a new process instance. Success is determined solely by
// the top-level status field; the returned identifiers are informational and
// may be empty even on success.
func (c *Client) InvokeProcess(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	const op = "invoke process"

	if req.SourceSystem == "" {
		req.SourceSystem = c.cfg.SourceSystem
	}
	if req.Environment == "" {
		req.Environment = c.cfg.Environment
	}

	var resp invokeResponse
	if err := c.postJSON(ctx, op, "/bpm/invoke-process", req, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "SUCCESS" {
		return nil, &RemoteError{Op: op, Code: resp.Status, Message: resp.Message}
	}

	c.logger.Info("Process invoked",
		zap.String("process_code", req.ProcessCode),
		zap.String("process_serial_no", resp.ProcessSerialNo),
		zap.String("bpm_process_oid", resp.BpmProcessOid))

	return &InvokeResult{
		ProcessOid:      resp.BpmProcessOid,
		ProcessSerialNo: resp.ProcessSerialNo,
		Message:         resp.Message,
	}, nil
}

// AbortProcesses aborts a batch of running processes. The middleware answers
// in one of two shapes: a per-item results array, or a single top-level
// status/message pair. The array is checked first; a status-only reply is
// normalized into a single synthetic result. A reply with neither shape is a
// remote failure.
func (c *Client) AbortProcesses(ctx context.Context, items []AbortItem) ([]AbortResult, error) {
	const op = "abort processes"

	for i := range items {
		if items[i].Environment == "" {
			items[i].Environment = c.cfg.Environment
		}
	}

	var resp abortResponse
	if err := c.postJSON(ctx, op, "/bpm/batch/abort-processes", abortRequest{Items: items}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Results) > 0 {
		return resp.Results, nil
	}
	if resp.Status != "" {
		msg := resp.Message
		if msg == "" {
			msg = resp.Status
		}
		return []AbortResult{{Success: resp.Status == "SUCCESS", Message: msg}}, nil
	}

	return nil, &RemoteError{Op: op, Message: "unrecognized abort response shape", Protocol: true}
}

// QueryWorkItems lists the pending work items for a user.
func (c *Client) QueryWorkItems(ctx context.Context, uid string) ([]WorkItem, error) {
	const op = "query work items"

	url := c.cfg.BaseURL + "/bpm/workitems/" + uid
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bpm: build request: %w", err)
	}

	var resp workItemsResponse
	if err := c.do(op, req, &resp); err != nil {
		return nil, err
	}
	return resp.WorkItems, nil
}

// postJSON sends a JSON body and decodes the JSON reply into out.
func (c *Client) postJSON(ctx context.Context, op, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("bpm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("bpm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(op, req, out)
}

// do executes the request and normalizes every failure mode: connection and
// timeout problems become *TransportError, non-2xx statuses and unparseable
// bodies become *RemoteError. Raw transport errors never escape.
func (c *Client) do(op string, req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("BPM request failed",
			zap.String("op", op),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return &TransportError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("BPM returned non-success status",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode))
		return &RemoteError{
			Op:       op,
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  fmt.Sprintf("http status %d", resp.StatusCode),
			Protocol: true,
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteError{Op: op, Message: fmt.Sprintf("unparseable response body: %v", err), Protocol: true}
	}
	return nil
}
