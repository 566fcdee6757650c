package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"charm.land/log/v2"

	"github.com/untoldecay/shopmirror/internal/shopify"
)

// fakeLibrary is a destination tenant exposing only its file library: a
// paged files listing and the delete mutation, with an optional batch that
// refuses to go.
type fakeLibrary struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	ids     []string
	batches []int
	failOn  int // 1-based fileDelete call that returns a user error, 0 for none
	deletes int
}

func newFakeLibrary(t *testing.T, files int) *fakeLibrary {
	t.Helper()
	f := &fakeLibrary{t: t}
	for i := range files {
		f.ids = append(f.ids, fmt.Sprintf("gid://shopify/GenericFile/%d", i+1))
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLibrary) client() *shopify.Client {
	return shopify.NewClient("dst.myshopify.com", "shpat_test", "2025-07").
		WithEndpoint(f.srv.URL).
		WithLogger(log.New(io.Discard))
}

func (f *fakeLibrary) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.Contains(req.Query, "fileDelete("):
		f.deletes++
		batch, _ := req.Variables["fileIds"].([]any)
		f.batches = append(f.batches, len(batch))
		if f.deletes == f.failOn {
			writeGraphQL(w, map[string]any{"fileDelete": map[string]any{
				"deletedFileIds": []any{},
				"userErrors":     []map[string]any{{"message": "file is referenced", "code": "FILE_IN_USE"}},
			}})
			return
		}
		reply(w, "fileDelete", map[string]any{"deletedFileIds": batch})

	case strings.Contains(req.Query, "files(first"):
		nodes := make([]map[string]any, 0, len(f.ids))
		for _, id := range f.ids {
			nodes = append(nodes, map[string]any{"__typename": "GenericFile", "id": id, "alt": "",
				"url": "https://cdn.shopify.com/s/files/9/" + id[strings.LastIndex(id, "/")+1:] + ".png"})
		}
		writeGraphQL(w, map[string]any{"files": conn(nodes)})

	default:
		f.t.Errorf("unexpected request: %s", req.Query)
		http.Error(w, "unexpected request", http.StatusTeapot)
	}
}

func TestDropFilesBatches(t *testing.T) {
	lib := newFakeLibrary(t, 120)

	st, err := DropFiles(context.Background(), lib.client())
	if err != nil {
		t.Fatalf("DropFiles: %v", err)
	}

	if st.Total != 120 || st.Deleted != 120 || st.Failed != 0 {
		t.Errorf("stats total=%d deleted=%d failed=%d, want 120/120/0", st.Total, st.Deleted, st.Failed)
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()
	want := []int{50, 50, 20}
	if len(lib.batches) != len(want) {
		t.Fatalf("fileDelete batches = %v, want %v", lib.batches, want)
	}
	for i, n := range want {
		if lib.batches[i] != n {
			t.Errorf("batch %d size = %d, want %d", i, lib.batches[i], n)
		}
	}
}

func TestDropFilesContinuesPastFailedBatch(t *testing.T) {
	lib := newFakeLibrary(t, 120)
	lib.failOn = 2

	st, err := DropFiles(context.Background(), lib.client())
	if err != nil {
		t.Fatalf("DropFiles: %v", err)
	}

	// The middle batch fails, the last one still runs.
	if st.Total != 120 || st.Deleted != 70 || st.Failed != 50 {
		t.Errorf("stats total=%d deleted=%d failed=%d, want 120/70/50", st.Total, st.Deleted, st.Failed)
	}
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.deletes != 3 {
		t.Errorf("fileDelete called %d times, want 3", lib.deletes)
	}
}

func TestDropFilesEmptyLibrary(t *testing.T) {
	lib := newFakeLibrary(t, 0)

	st, err := DropFiles(context.Background(), lib.client())
	if err != nil {
		t.Fatalf("DropFiles: %v", err)
	}
	if st.Total != 0 || st.Deleted != 0 || st.Failed != 0 {
		t.Errorf("stats = %+v, want all zero", *st)
	}
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.deletes != 0 {
		t.Errorf("fileDelete called %d times on an empty library", lib.deletes)
	}
}
