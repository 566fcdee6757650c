package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/untoldecay/shopmirror/internal/shopify"
)

func TestRunnerRun(t *testing.T) {
	const jsonl = `{"id":"gid://shopify/Product/1","handle":"widget"}
{"id":"gid://shopify/ProductVariant/10","sku":"W-1","__typename":"ProductVariant","__parentId":"gid://shopify/Product/1"}
`
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jsonl)
	}))
	defer files.Close()

	var polls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req shopify.GraphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		switch {
		case strings.Contains(req.Query, "bulkOperationRunQuery"):
			if req.Variables["query"] != "{ products { edges { node { id } } } }" {
				t.Errorf("unexpected bulk query variable: %v", req.Variables["query"])
			}
			fmt.Fprint(w, `{"data":{"bulkOperationRunQuery":{"bulkOperation":{"id":"gid://shopify/BulkOperation/7","status":"CREATED"},"userErrors":[]}}}`)
		case strings.Contains(req.Query, "currentBulkOperation"):
			if polls.Add(1) == 1 {
				fmt.Fprint(w, `{"data":{"currentBulkOperation":{"id":"gid://shopify/BulkOperation/7","status":"RUNNING","objectCount":"12"}}}`)
				return
			}
			fmt.Fprintf(w, `{"data":{"currentBulkOperation":{"id":"gid://shopify/BulkOperation/7","status":"COMPLETED","objectCount":"34","url":%q}}}`, files.URL+"/result.jsonl")
		default:
			t.Errorf("unexpected query: %s", req.Query)
		}
	}))
	defer api.Close()

	client := shopify.NewClient("test-shop.example.com", "tok", "2025-10").WithEndpoint(api.URL)
	runner := NewRunner(client).WithPollInterval(time.Millisecond, 5*time.Millisecond)

	rc, err := runner.Run(context.Background(), "{ products { edges { node { id } } } }")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if string(body) != jsonl {
		t.Errorf("unexpected result body:\n%s", body)
	}
	if polls.Load() < 2 {
		t.Errorf("expected at least 2 polls, got %d", polls.Load())
	}
}

func TestRunnerRunEmptyResult(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req shopify.GraphQLRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Query, "bulkOperationRunQuery") {
			fmt.Fprint(w, `{"data":{"bulkOperationRunQuery":{"bulkOperation":{"id":"gid://shopify/BulkOperation/8","status":"CREATED"},"userErrors":[]}}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"currentBulkOperation":{"id":"gid://shopify/BulkOperation/8","status":"COMPLETED","objectCount":"0","url":null}}}`)
	}))
	defer api.Close()

	client := shopify.NewClient("test-shop.example.com", "tok", "2025-10").WithEndpoint(api.URL)
	runner := NewRunner(client).WithPollInterval(time.Millisecond, 5*time.Millisecond)

	rc, err := runner.Run(context.Background(), "{ pages { edges { node { id } } } }")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer rc.Close()

	body, _ := io.ReadAll(rc)
	if len(body) != 0 {
		t.Errorf("expected empty result, got %q", body)
	}
}

func TestRunnerRunRejected(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"bulkOperationRunQuery":{"bulkOperation":null,"userErrors":[{"field":["query"],"message":"A bulk query operation for this app and shop is already in progress"}]}}}`)
	}))
	defer api.Close()

	client := shopify.NewClient("test-shop.example.com", "tok", "2025-10").WithEndpoint(api.URL)
	runner := NewRunner(client).WithPollInterval(time.Millisecond, 5*time.Millisecond)

	_, err := runner.Run(context.Background(), "{ products { edges { node { id } } } }")
	if err == nil || !strings.Contains(err.Error(), "already in progress") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestRunnerRunFailure(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req shopify.GraphQLRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Query, "bulkOperationRunQuery") {
			fmt.Fprint(w, `{"data":{"bulkOperationRunQuery":{"bulkOperation":{"id":"gid://shopify/BulkOperation/9","status":"CREATED"},"userErrors":[]}}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"currentBulkOperation":{"id":"gid://shopify/BulkOperation/9","status":"FAILED","errorCode":"ACCESS_DENIED","objectCount":"0","url":null}}}`)
	}))
	defer api.Close()

	client := shopify.NewClient("test-shop.example.com", "tok", "2025-10").WithEndpoint(api.URL)
	runner := NewRunner(client).WithPollInterval(time.Millisecond, 5*time.Millisecond)

	_, err := runner.Run(context.Background(), "{ products { edges { node { id } } } }")
	if err == nil || !strings.Contains(err.Error(), "FAILED") {
		t.Fatalf("expected failure error, got %v", err)
	}
}

func TestStreamReassemblesChildren(t *testing.T) {
	jsonl := strings.Join([]string{
		`{"id":"gid://shopify/Product/1","handle":"widget"}`,
		`{"id":"gid://shopify/ProductVariant/10","sku":"W-1","__typename":"ProductVariant","__parentId":"gid://shopify/Product/1"}`,
		`{"id":"gid://shopify/ProductVariant/11","sku":"W-2","__typename":"ProductVariant","__parentId":"gid://shopify/Product/1"}`,
		`{"namespace":"custom","key":"note","__typename":"Metafield","__parentId":"gid://shopify/Product/1"}`,
		`{"id":"gid://shopify/Product/2","handle":"gadget"}`,
		`{"id":"gid://shopify/ProductVariant/20","sku":"G-1","__typename":"ProductVariant","__parentId":"gid://shopify/Product/2"}`,
	}, "\n")

	s := NewStream(strings.NewReader(jsonl), map[string]string{
		"ProductVariant": "variants",
		"Metafield":      "metafields",
	})

	var records []map[string]any
	for s.Next() {
		records = append(records, s.Record())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first["handle"] != "widget" {
		t.Errorf("expected widget first, got %v", first["handle"])
	}
	variants, _ := first["variants"].([]any)
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %v", first["variants"])
	}
	v0 := variants[0].(map[string]any)
	if v0["sku"] != "W-1" {
		t.Errorf("expected first variant W-1, got %v", v0["sku"])
	}
	if _, ok := v0["__parentId"]; ok {
		t.Error("__parentId should be stripped from children")
	}
	metafields, _ := first["metafields"].([]any)
	if len(metafields) != 1 {
		t.Fatalf("expected 1 metafield, got %v", first["metafields"])
	}

	second := records[1]
	if second["handle"] != "gadget" {
		t.Errorf("expected gadget second, got %v", second["handle"])
	}
	if got, _ := second["variants"].([]any); len(got) != 1 {
		t.Errorf("expected 1 variant on gadget, got %v", second["variants"])
	}
}

func TestStreamNestedChildren(t *testing.T) {
	jsonl := strings.Join([]string{
		`{"id":"gid://shopify/Blog/1","handle":"news"}`,
		`{"id":"gid://shopify/Article/5","handle":"hello","__typename":"Article","__parentId":"gid://shopify/Blog/1"}`,
		`{"namespace":"custom","key":"tags","__typename":"Metafield","__parentId":"gid://shopify/Article/5"}`,
	}, "\n")

	s := NewStream(strings.NewReader(jsonl), map[string]string{
		"Article":   "articles",
		"Metafield": "metafields",
	})

	if !s.Next() {
		t.Fatalf("expected a record, got error %v", s.Err())
	}
	blog := s.Record()
	articles, _ := blog["articles"].([]any)
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %v", blog["articles"])
	}
	article := articles[0].(map[string]any)
	metafields, _ := article["metafields"].([]any)
	if len(metafields) != 1 {
		t.Errorf("expected metafield attached to nested article, got %v", article)
	}
	if s.Next() {
		t.Error("expected a single record")
	}
}

func TestStreamEmptyAndBlankLines(t *testing.T) {
	s := NewStream(strings.NewReader("\n\n"), nil)
	if s.Next() {
		t.Error("expected no records from blank input")
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStreamSkipsBadLines(t *testing.T) {
	// Unparseable lines, children of unmapped types, and orphaned children
	// are dropped without aborting the sequence.
	jsonl := strings.Join([]string{
		`{"id":"gid://shopify/Product/1","handle":"first"}`,
		`not json at all`,
		`{"id":"gid://shopify/Image/9","__typename":"Image","__parentId":"gid://shopify/Product/1"}`,
		`{"sku":"X","__typename":"ProductVariant","__parentId":"gid://shopify/Product/999"}`,
		`{"sku":"Y","__typename":"ProductVariant","__parentId":"gid://shopify/Product/1"}`,
		`{"id":"gid://shopify/Product/2","handle":"second"}`,
	}, "\n")

	s := NewStream(strings.NewReader(jsonl), map[string]string{"ProductVariant": "variants"})
	var records []map[string]any
	for s.Next() {
		records = append(records, s.Record())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if got := s.Skipped(); got != 3 {
		t.Errorf("expected 3 skipped lines, got %d", got)
	}
	variants, _ := records[0]["variants"].([]any)
	if len(variants) != 1 {
		t.Fatalf("expected surviving variant on first record, got %v", records[0]["variants"])
	}
	if v := variants[0].(map[string]any); v["sku"] != "Y" {
		t.Errorf("expected variant Y, got %v", v["sku"])
	}
}
