package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/api"
	"github.com/phrazzld/recall-api/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, baseURL string) *client.Client {
	t.Helper()

	c, err := client.New(client.Config{
		BaseURL:      baseURL,
		Token:        "test-token",
		PollInterval: 10 * time.Millisecond,
		MaxWait:      2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClientSubmitText(t *testing.T) {
	t.Parallel()

	taskID := uuid.New().String()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/processor/text", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req api.SubmitTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "some content", req.Content)

		writeJSON(t, w, http.StatusAccepted, api.SubmitResponse{TaskID: taskID})
	}))
	defer server.Close()

	c := newClient(t, server.URL)
	got, err := c.SubmitText(context.Background(), api.SubmitTextRequest{Content: "some content"})
	require.NoError(t, err)
	assert.Equal(t, taskID, got)
}

func TestClientPollTaskToCompletion(t *testing.T) {
	t.Parallel()

	taskID := uuid.New().String()
	var polls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/processor/task/"+taskID, r.URL.Path)

		switch polls.Add(1) {
		case 1:
			writeJSON(t, w, http.StatusOK, api.TaskResponse{
				TaskID: taskID, Status: "queued", Progress: 0,
			})
		case 2:
			writeJSON(t, w, http.StatusOK, api.TaskResponse{
				TaskID: taskID, Status: "processing", Progress: 40, Message: "Content extracted",
			})
		default:
			writeJSON(t, w, http.StatusOK, api.TaskResponse{
				TaskID: taskID, Status: "completed", Progress: 100,
				Result: json.RawMessage(`{"card_count":5}`),
			})
		}
	}))
	defer server.Close()

	c := newClient(t, server.URL)

	var snapshots []api.TaskResponse
	final, err := c.PollTask(context.Background(), taskID, func(tr api.TaskResponse) {
		snapshots = append(snapshots, tr)
	})
	require.NoError(t, err)

	assert.Equal(t, "completed", final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.JSONEq(t, `{"card_count":5}`, string(final.Result))

	// Every snapshot is reported, the terminal one included.
	require.Len(t, snapshots, 3)
	assert.Equal(t, "queued", snapshots[0].Status)
	assert.Equal(t, "processing", snapshots[1].Status)
	assert.Equal(t, "completed", snapshots[2].Status)
}

func TestClientPollTaskTimeout(t *testing.T) {
	t.Parallel()

	taskID := uuid.New().String()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, api.TaskResponse{
			TaskID: taskID, Status: "processing", Progress: 40,
		})
	}))
	defer server.Close()

	c, err := client.New(client.Config{
		BaseURL:      server.URL,
		PollInterval: 10 * time.Millisecond,
		MaxWait:      80 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.PollTask(context.Background(), taskID, nil)
	assert.ErrorIs(t, err, client.ErrPollTimeout)
}

func TestClientPollTaskCallerCancellation(t *testing.T) {
	t.Parallel()

	taskID := uuid.New().String()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, api.TaskResponse{
			TaskID: taskID, Status: "processing", Progress: 40,
		})
	}))
	defer server.Close()

	c := newClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := c.PollTask(ctx, taskID, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientPollTaskObservesCancelledTask(t *testing.T) {
	t.Parallel()

	taskID := uuid.New().String()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, api.TaskResponse{
			TaskID: taskID, Status: "cancelled", Progress: 40, Message: "Task cancelled",
		})
	}))
	defer server.Close()

	c := newClient(t, server.URL)
	final, err := c.PollTask(context.Background(), taskID, nil)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", final.Status)
}

func TestClientGetTaskNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusNotFound, map[string]string{"error": "Task not found"})
	}))
	defer server.Close()

	c := newClient(t, server.URL)
	_, err := c.GetTask(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, client.ErrTaskNotFound)

	// Not found is definitive; polling must not retry it either.
	_, err = c.PollTask(context.Background(), uuid.New().String(), nil)
	assert.ErrorIs(t, err, client.ErrTaskNotFound)
	assert.Equal(t, int64(2), calls.Load())
}

func TestClientCancelTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"accepted", http.StatusAccepted, nil},
		{"not found", http.StatusNotFound, client.ErrTaskNotFound},
		{"already finished", http.StatusConflict, client.ErrTaskFinished},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodDelete, r.Method)
				writeJSON(t, w, tc.status, map[string]string{})
			}))
			defer server.Close()

			c := newClient(t, server.URL)
			err := c.CancelTask(context.Background(), uuid.New().String())
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestClientRetriesTransportErrors(t *testing.T) {
	t.Parallel()

	taskID := uuid.New().String()
	var calls atomic.Int64

	// The first two polls fail at the HTTP layer; the third succeeds.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		writeJSON(t, w, http.StatusOK, api.TaskResponse{
			TaskID: taskID, Status: "completed", Progress: 100,
		})
	}))
	defer server.Close()

	c := newClient(t, server.URL)
	final, err := c.PollTask(context.Background(), taskID, nil)
	require.NoError(t, err)
	assert.Equal(t, "completed", final.Status)
	assert.GreaterOrEqual(t, calls.Load(), int64(3))
}

func TestClientConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := client.New(client.Config{})
	assert.Error(t, err)
}
