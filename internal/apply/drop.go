package apply

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/shopmirror/internal/shopify"
)

// fileDeleteBatch is the platform's per-call deletion cap.
const fileDeleteBatch = 50

const fileDeleteMutation = `mutation fileDelete($fileIds: [ID!]!) {
	fileDelete(fileIds: $fileIds) {
		deletedFileIds
		userErrors { field message code }
	}
}`

// DropStats counts one drop run.
type DropStats struct {
	Total   int
	Deleted int
	Failed  int
}

// DropFiles deletes the tenant's entire file library in batches. A failed
// batch is logged and the run continues with the next one. Confirmation is
// the caller's job; by this point the decision is made.
func DropFiles(ctx context.Context, client *shopify.Client) (*DropStats, error) {
	logger := client.Logger()

	var ids []string
	err := client.Paginate(ctx, destFilesQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Files struct {
				PageInfo shopify.PageInfo `json:"pageInfo"`
				Nodes    []struct {
					ID string `json:"id"`
				} `json:"nodes"`
			} `json:"files"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse file page: %w", err)
		}
		for _, n := range resp.Files.Nodes {
			if n.ID != "" {
				ids = append(ids, n.ID)
			}
		}
		return resp.Files.PageInfo, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	st := &DropStats{Total: len(ids)}
	for start := 0; start < len(ids); start += fileDeleteBatch {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		end := min(start+fileDeleteBatch, len(ids))
		batch := ids[start:end]

		if err := execMutation(ctx, client, fileDeleteMutation, "fileDelete", map[string]any{"fileIds": batch}, nil); err != nil {
			st.Failed += len(batch)
			logger.Error("file batch failed", "size", len(batch), "error", err)
			continue
		}
		st.Deleted += len(batch)
		logger.Info("deleting files", "deleted", st.Deleted, "total", st.Total)
	}
	return st, nil
}
