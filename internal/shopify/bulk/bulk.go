// Package bulk runs admin bulk operations: submit a bulk query, poll until
// the platform finishes writing the result file, download it, and reassemble
// the flattened JSONL back into nested records.
package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/untoldecay/shopmirror/internal/logging"
	"github.com/untoldecay/shopmirror/internal/shopify"
)

// Bulk operation terminal and transient states.
const (
	StatusCreated      = "CREATED"
	StatusRunning      = "RUNNING"
	StatusCompleted    = "COMPLETED"
	StatusFailed       = "FAILED"
	StatusCanceled     = "CANCELED"
	StatusAccessDenied = "ACCESS_DENIED"
)

const (
	defaultPollInitial = 1 * time.Second
	defaultPollMax     = 30 * time.Second
)

// Operation is the platform's view of a bulk operation.
type Operation struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode"`
	ObjectCount string `json:"objectCount"`
	URL         string `json:"url"`
}

// Runner submits bulk queries against one tenant. A tenant admits a single
// bulk operation at a time, so Run serializes behind a mutex; a bulk op
// started outside this process surfaces as an error naming its ID.
type Runner struct {
	client *shopify.Client

	mu          sync.Mutex
	pollInitial time.Duration
	pollMax     time.Duration

	// download has no timeout of its own; result files can be large and the
	// context bounds the fetch.
	download *http.Client
}

// NewRunner wraps a client in a bulk runner.
func NewRunner(client *shopify.Client) *Runner {
	return &Runner{
		client:      client,
		pollInitial: defaultPollInitial,
		pollMax:     defaultPollMax,
		download:    &http.Client{},
	}
}

// WithPollInterval overrides the poll cadence. Used by tests.
func (r *Runner) WithPollInterval(initial, max time.Duration) *Runner {
	r.pollInitial = initial
	r.pollMax = max
	return r
}

const runQueryMutation = `mutation bulkRun($query: String!) {
  bulkOperationRunQuery(query: $query) {
    bulkOperation { id status }
    userErrors { field message }
  }
}`

const currentOperationQuery = `query {
  currentBulkOperation {
    id
    status
    errorCode
    objectCount
    url
  }
}`

const cancelMutation = `mutation bulkCancel($id: ID!) {
  bulkOperationCancel(id: $id) {
    bulkOperation { id status }
    userErrors { field message }
  }
}`

// Run submits the bulk query, waits for it to finish, and returns a reader
// over the result JSONL. A completed operation with no result file (zero
// objects) yields an empty reader. The caller closes the reader.
func (r *Runner) Run(ctx context.Context, query string) (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.submit(ctx, query)
	if err != nil {
		return nil, err
	}
	r.client.Logger().Debug("bulk operation submitted", "id", op.ID)

	final, err := r.wait(ctx, op.ID)
	if err != nil {
		return nil, err
	}
	r.client.Logger().Debug("bulk operation completed", "id", final.ID, "objects", final.ObjectCount)

	if final.URL == "" {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return r.fetch(ctx, final.URL)
}

func (r *Runner) submit(ctx context.Context, query string) (*Operation, error) {
	data, err := r.client.Execute(ctx, runQueryMutation, map[string]any{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to submit bulk operation: %w", err)
	}

	var resp struct {
		BulkOperationRunQuery struct {
			BulkOperation *Operation         `json:"bulkOperation"`
			UserErrors    shopify.UserErrors `json:"userErrors"`
		} `json:"bulkOperationRunQuery"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse bulk submission: %w", err)
	}
	if err := resp.BulkOperationRunQuery.UserErrors.Err(); err != nil {
		return nil, fmt.Errorf("bulk operation rejected: %w", err)
	}
	if resp.BulkOperationRunQuery.BulkOperation == nil {
		return nil, fmt.Errorf("bulk operation rejected: no operation returned")
	}
	return resp.BulkOperationRunQuery.BulkOperation, nil
}

// wait polls currentBulkOperation until the submitted operation reaches a
// terminal state. The poll interval starts small and widens toward a cap so
// long exports do not burn request credits on polling.
func (r *Runner) wait(ctx context.Context, id string) (*Operation, error) {
	interval := r.pollInitial
	for {
		if err := sleep(ctx, interval); err != nil {
			r.cancel(id)
			return nil, err
		}
		if interval < r.pollMax {
			interval = min(time.Duration(float64(interval)*1.5), r.pollMax)
		}

		op, err := r.poll(ctx)
		if err != nil {
			return nil, err
		}
		if op.ID != id {
			return nil, fmt.Errorf("another bulk operation %s is running on this shop", op.ID)
		}

		switch op.Status {
		case StatusCompleted:
			return op, nil
		case StatusFailed, StatusAccessDenied, StatusCanceled:
			return nil, fmt.Errorf("bulk operation %s: %s (%s)", op.ID, op.Status, op.ErrorCode)
		case StatusCreated, StatusRunning:
			r.client.Logger().Debug("bulk operation running", "id", op.ID, "objects", op.ObjectCount)
		default:
			return nil, fmt.Errorf("bulk operation %s in unexpected state %s", op.ID, op.Status)
		}
	}
}

func (r *Runner) poll(ctx context.Context) (*Operation, error) {
	data, err := r.client.Execute(ctx, currentOperationQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to poll bulk operation: %w", err)
	}

	var resp struct {
		CurrentBulkOperation *Operation `json:"currentBulkOperation"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse bulk status: %w", err)
	}
	if resp.CurrentBulkOperation == nil {
		return nil, fmt.Errorf("bulk operation vanished while polling")
	}
	return resp.CurrentBulkOperation, nil
}

// cancel makes a best-effort attempt to stop an abandoned operation so the
// tenant's single bulk slot frees up. Errors are logged and swallowed; the
// caller is already unwinding.
func (r *Runner) cancel(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.client.Execute(ctx, cancelMutation, map[string]any{"id": id}); err != nil {
		r.client.Logger().Warn("failed to cancel bulk operation", "id", id, "err", err)
	}
}

// fetch downloads the result file. The URL is pre-signed; no auth header.
func (r *Runner) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	r.client.Logger().Debug("downloading bulk result", "url", logging.RedactURL(url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := r.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download bulk result: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("bulk result download failed (status %d)", resp.StatusCode)
	}
	return resp.Body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
