package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Confirmer starts confirmation tracking for accepted submissions.
type Confirmer interface {
	StartConfirmation(ctx context.Context, hash, signer string) error
}

// Client is a production implementation of Confirmer that talks to Temporal.
type Client struct {
	client       client.Client
	taskQueue    string
	pollInterval time.Duration
	maxPolls     int
	logger       *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, pollInterval time.Duration, maxPolls int, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:       c,
		taskQueue:    taskQueue,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		logger:       logger,
	}, nil
}

// StartConfirmation starts ConfirmSubmissionWorkflow for a submission.
// Starting twice for the same hash is rejected by Temporal while the first run is open.
func (c *Client) StartConfirmation(ctx context.Context, hash, signer string) error {
	id := workflowID(hash)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    id,
		TaskQueue:             c.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		Memo: map[string]interface{}{
			"hash":       hash,
			"signer":     signer,
			"created_by": "ticketchain",
		},
	}, ConfirmSubmissionWorkflow, ConfirmSubmissionInput{
		Hash:         hash,
		Signer:       signer,
		PollInterval: c.pollInterval,
		MaxPolls:     c.maxPolls,
	})
	if err != nil {
		c.logger.Error("failed to start confirmation workflow",
			"hash", hash,
			"workflow_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.Info("confirmation workflow started",
		"hash", hash,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return nil
}

// GetConfirmation waits for the confirmation workflow of hash and returns its result.
func (c *Client) GetConfirmation(ctx context.Context, hash string) (*ConfirmSubmissionResult, error) {
	var result ConfirmSubmissionResult
	if err := c.client.GetWorkflow(ctx, workflowID(hash), "").Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to get confirmation for %s: %w", hash, err)
	}
	return &result, nil
}

// ConfirmationInfo describes the confirmation workflow of one submission.
type ConfirmationInfo struct {
	WorkflowID string                   `json:"workflow_id"`
	RunID      string                   `json:"run_id"`
	Status     string                   `json:"status"`
	StartTime  time.Time                `json:"start_time"`
	CloseTime  *time.Time               `json:"close_time,omitempty"`
	Result     *ConfirmSubmissionResult `json:"result,omitempty"`
}

// DescribeConfirmation reports the state of the confirmation workflow for
// hash. The result is included once the workflow has completed.
func (c *Client) DescribeConfirmation(ctx context.Context, hash string) (*ConfirmationInfo, error) {
	id := workflowID(hash)
	resp, err := c.client.DescribeWorkflowExecution(ctx, id, "")
	if err != nil {
		return nil, fmt.Errorf("failed to describe workflow %q: %w", id, err)
	}

	exec := resp.GetWorkflowExecutionInfo()
	info := &ConfirmationInfo{
		WorkflowID: exec.GetExecution().GetWorkflowId(),
		RunID:      exec.GetExecution().GetRunId(),
		Status:     exec.GetStatus().String(),
		StartTime:  exec.GetStartTime().AsTime(),
	}
	if exec.GetCloseTime() != nil {
		closed := exec.GetCloseTime().AsTime()
		info.CloseTime = &closed
	}

	if exec.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		result, err := c.GetConfirmation(ctx, hash)
		if err != nil {
			return nil, err
		}
		info.Result = result
	}
	return info, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

func workflowID(hash string) string {
	return "confirm-submission-" + hash
}

// MockConfirmer records started confirmations for testing.
type MockConfirmer struct {
	mu      sync.Mutex
	started map[string]string // hash -> signer
	err     error
}

// NewMockConfirmer creates a new MockConfirmer.
func NewMockConfirmer() *MockConfirmer {
	return &MockConfirmer{started: make(map[string]string)}
}

// StartConfirmation records the hash or returns the configured error.
func (m *MockConfirmer) StartConfirmation(ctx context.Context, hash, signer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.started[hash] = signer
	return nil
}

// SetError makes StartConfirmation return err.
func (m *MockConfirmer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Started reports whether a confirmation was started for hash, and by which signer.
func (m *MockConfirmer) Started(hash string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	signer, ok := m.started[hash]
	return signer, ok
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
