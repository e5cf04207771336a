package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"github.com/phrazzld/recall-api/internal/api"
)

// Common sentinel errors for the processor client.
var (
	// ErrPollTimeout indicates the task did not reach a terminal state
	// within the configured maximum wait.
	ErrPollTimeout = errors.New("polling timed out before task finished")

	// ErrTaskNotFound indicates the server does not know the task, or it
	// belongs to another user.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskFinished indicates a cancellation was rejected because the
	// task already reached a terminal state.
	ErrTaskFinished = errors.New("task already finished")

	// ErrUnexpectedStatus indicates the server answered with a status code
	// the client does not know how to handle.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Config holds the processor client settings. Zero values select the
// documented defaults.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080/api".
	BaseURL string

	// Token is the bearer token sent on every request.
	Token string

	// PollInterval is the delay between successful status polls.
	// Defaults to 1s.
	PollInterval time.Duration

	// MaxWait bounds the total time PollTask waits for a terminal state.
	// Defaults to 5m.
	MaxWait time.Duration

	// RequestTimeout bounds each individual HTTP request. Defaults to 15s.
	RequestTimeout time.Duration

	// MaxConsecutiveErrors is the number of consecutive failed polls
	// tolerated before PollTask gives up. Defaults to 5.
	MaxConsecutiveErrors int
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 5 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = 5
	}
}

// ProgressFunc receives each polled task snapshot, including the final
// terminal one. It runs on the polling goroutine.
type ProgressFunc func(api.TaskResponse)

// Client submits work to the processor API and polls it to completion.
type Client struct {
	http *resty.Client
	cfg  Config
}

// New creates a processor client for the given server.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client base URL cannot be empty")
	}
	cfg.applyDefaults()

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}

	return &Client{http: httpClient, cfg: cfg}, nil
}

// SubmitText submits raw text for flashcard generation and returns the
// task ID to poll.
func (c *Client) SubmitText(ctx context.Context, req api.SubmitTextRequest) (string, error) {
	return c.submit(ctx, "/processor/text", req)
}

// SubmitURL submits a web page for flashcard generation.
func (c *Client) SubmitURL(ctx context.Context, req api.SubmitURLRequest) (string, error) {
	return c.submit(ctx, "/processor/url", req)
}

// SubmitFile submits an uploaded document for flashcard generation.
func (c *Client) SubmitFile(ctx context.Context, req api.SubmitFileRequest) (string, error) {
	return c.submit(ctx, "/processor/file", req)
}

// SubmitGenerate submits text under the explicit generation task type.
func (c *Client) SubmitGenerate(ctx context.Context, req api.SubmitTextRequest) (string, error) {
	return c.submit(ctx, "/processor/generate", req)
}

// SubmitExport requests an export of an existing flashcard set.
func (c *Client) SubmitExport(ctx context.Context, req api.SubmitExportRequest) (string, error) {
	return c.submit(ctx, "/processor/export", req)
}

func (c *Client) submit(ctx context.Context, path string, body interface{}) (string, error) {
	var ack api.SubmitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&ack).
		Post(path)
	if err != nil {
		return "", fmt.Errorf("failed to submit task: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return "", fmt.Errorf("%w: %s from POST %s", ErrUnexpectedStatus, resp.Status(), path)
	}
	return ack.TaskID, nil
}

// GetTask fetches the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (api.TaskResponse, error) {
	var task api.TaskResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&task).
		Get("/processor/task/" + taskID)
	if err != nil {
		return api.TaskResponse{}, fmt.Errorf("failed to fetch task: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return task, nil
	case http.StatusNotFound:
		return api.TaskResponse{}, ErrTaskNotFound
	default:
		return api.TaskResponse{}, fmt.Errorf("%w: %s from GET task", ErrUnexpectedStatus, resp.Status())
	}
}

// CancelTask asks the server to cancel a task. Returns ErrTaskFinished
// when the task already reached a terminal state.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/processor/task/" + taskID)
	if err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusAccepted, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrTaskNotFound
	case http.StatusConflict:
		return ErrTaskFinished
	default:
		return fmt.Errorf("%w: %s from DELETE task", ErrUnexpectedStatus, resp.Status())
	}
}

// PollTask polls a task until it reaches a terminal state and returns
// the final snapshot. onProgress, if non-nil, is invoked for every
// snapshot observed, the terminal one included.
//
// Transient transport failures are retried with capped exponential
// backoff; MaxConsecutiveErrors failures in a row abort the poll. If
// MaxWait elapses first, PollTask returns ErrPollTimeout — the task
// itself keeps running server-side and can still be cancelled.
func (c *Client) PollTask(ctx context.Context, taskID string, onProgress ProgressFunc) (api.TaskResponse, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		task, err := c.pollOnce(pollCtx, taskID)
		if err != nil {
			if pollCtx.Err() != nil {
				return api.TaskResponse{}, c.timeoutErr(ctx, pollCtx)
			}
			return api.TaskResponse{}, err
		}

		if onProgress != nil {
			onProgress(task)
		}
		if isTerminal(task.Status) {
			return task, nil
		}

		select {
		case <-pollCtx.Done():
			return api.TaskResponse{}, c.timeoutErr(ctx, pollCtx)
		case <-ticker.C:
		}
	}
}

// pollOnce fetches a task snapshot, retrying transport errors with
// capped backoff. Definitive answers (not found, unexpected status) are
// returned immediately.
func (c *Client) pollOnce(ctx context.Context, taskID string) (api.TaskResponse, error) {
	var task api.TaskResponse
	err := retry.Do(
		func() error {
			var err error
			task, err = c.GetTask(ctx, taskID)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxConsecutiveErrors)),
		retry.Delay(c.cfg.PollInterval),
		retry.MaxDelay(10*c.cfg.PollInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrTaskNotFound) && !errors.Is(err, ErrUnexpectedStatus)
		}),
	)
	if err != nil {
		return api.TaskResponse{}, err
	}
	return task, nil
}

// timeoutErr distinguishes the caller cancelling the poll from the
// MaxWait deadline firing.
func (c *Client) timeoutErr(parent, pollCtx context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(pollCtx.Err(), context.DeadlineExceeded) {
		return ErrPollTimeout
	}
	return pollCtx.Err()
}

func isTerminal(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}
