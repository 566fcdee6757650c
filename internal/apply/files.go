package apply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"charm.land/log/v2"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/logging"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

const destFilesQuery = `query destFiles($after: String) {
	files(first: 250, after: $after) {
		pageInfo { hasNextPage endCursor }
		nodes {
			__typename
			id
			alt
			... on MediaImage { image { url } }
			... on GenericFile { url }
			... on Video { originalSource { url } }
		}
	}
}`

const fileCreateMutation = `mutation fileCreate($files: [FileCreateInput!]!) {
	fileCreate(files: $files) {
		files {
			__typename
			id
			alt
			... on MediaImage { image { url } }
			... on GenericFile { url }
		}
		userErrors { field message code }
	}
}`

const fileUpdateMutation = `mutation fileUpdate($files: [FileUpdateInput!]!) {
	fileUpdate(files: $files) {
		files { id }
		userErrors { field message code }
	}
}`

const stagedUploadsCreateMutation = `mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
	stagedUploadsCreate(input: $input) {
		stagedTargets {
			url
			resourceUrl
			parameters { name value }
		}
		userErrors { field message }
	}
}`

// FileEntry is one destination library entry, keyed by filename.
type FileEntry struct {
	ID  string
	URL string
	Alt string
}

// FileSync reconciles the dump's file records against the destination
// library. Files match by filename only: same name and alt is a skip, same
// name with different alt is a metadata update, unknown name is an upload.
// It also keeps the source-URL to destination view other phases rewrite
// embedded URLs through.
type FileSync struct {
	Client *shopify.Client

	// HTTP moves blobs: downloads from the source CDN and staged-upload
	// posts to the destination. Mutations go through Client.
	HTTP *http.Client

	logger *log.Logger

	mu       sync.Mutex
	byName   map[string]FileEntry
	bySource map[string]FileEntry
}

// NewFileSync prepares a file sync against the destination behind client.
func NewFileSync(client *shopify.Client) *FileSync {
	return &FileSync{
		Client:   client,
		HTTP:     &http.Client{Timeout: 2 * time.Minute},
		logger:   client.Logger(),
		byName:   make(map[string]FileEntry),
		bySource: make(map[string]FileEntry),
	}
}

type destFileNode struct {
	Typename string `json:"__typename"`
	ID       string `json:"id"`
	Alt      string `json:"alt"`
	Image    *struct {
		URL string `json:"url"`
	} `json:"image"`
	URL            string `json:"url"`
	OriginalSource *struct {
		URL string `json:"url"`
	} `json:"originalSource"`
}

func (n destFileNode) fileURL() string {
	switch {
	case n.Image != nil:
		return n.Image.URL
	case n.URL != "":
		return n.URL
	case n.OriginalSource != nil:
		return n.OriginalSource.URL
	}
	return ""
}

// LoadDestination pages the destination library into the filename view.
func (fs *FileSync) LoadDestination(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := 0
	err := fs.Client.Paginate(ctx, destFilesQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Files struct {
				PageInfo shopify.PageInfo `json:"pageInfo"`
				Nodes    []destFileNode   `json:"nodes"`
			} `json:"files"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse files page: %w", err)
		}
		for _, node := range resp.Files.Nodes {
			name := index.Filename(node.fileURL())
			if name == "" {
				continue
			}
			if _, ok := fs.byName[name]; ok {
				continue
			}
			fs.byName[name] = FileEntry{ID: node.ID, URL: node.fileURL(), Alt: node.Alt}
			n++
		}
		return resp.Files.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to load destination file library: %w", err)
	}
	fs.logger.Debug("destination file library loaded", "files", n)
	return nil
}

// Lookup returns the destination entry for a filename.
func (fs *FileSync) Lookup(name string) (FileEntry, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.byName[name]
	return d, ok
}

// DestinationURL rewrites a source file URL to its destination counterpart.
// URLs that never went through the library pass through unchanged.
func (fs *FileSync) DestinationURL(sourceURL string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if d, ok := fs.bySource[sourceURL]; ok && d.URL != "" {
		return d.URL
	}
	return sourceURL
}

// Sync reconciles one dump record against the library.
func (fs *FileSync) Sync(ctx context.Context, rec types.File) (action, error) {
	name := rec.Filename
	if name == "" {
		name = index.Filename(rec.URL)
	}
	if name == "" {
		return "", fmt.Errorf("file record has no filename")
	}

	fs.mu.Lock()
	existing, ok := fs.byName[name]
	fs.mu.Unlock()

	if ok {
		fs.remember(rec.URL, existing)
		if existing.Alt == rec.Alt {
			return actSkipped, nil
		}
		if err := fs.updateAlt(ctx, existing.ID, rec.Alt); err != nil {
			return "", err
		}
		existing.Alt = rec.Alt
		fs.store(name, rec.URL, existing)
		return actUpdated, nil
	}

	created, err := fs.create(ctx, rec, name)
	if err != nil {
		return "", err
	}
	fs.store(name, rec.URL, created)
	return actCreated, nil
}

func (fs *FileSync) store(name, sourceURL string, d FileEntry) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.byName[name] = d
	if sourceURL != "" {
		fs.bySource[sourceURL] = d
	}
}

func (fs *FileSync) remember(sourceURL string, d FileEntry) {
	if sourceURL == "" {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.bySource[sourceURL] = d
}

func (fs *FileSync) updateAlt(ctx context.Context, id, alt string) error {
	vars := map[string]any{
		"files": []map[string]any{{"id": id, "alt": alt}},
	}
	return execMutation(ctx, fs.Client, fileUpdateMutation, "fileUpdate", vars, nil)
}

// create uploads one file. Platform CDN URLs are ingestible directly;
// anything else goes through a staged upload.
func (fs *FileSync) create(ctx context.Context, rec types.File, name string) (FileEntry, error) {
	source := rec.URL
	if !isPlatformCDN(source) {
		staged, err := fs.stageUpload(ctx, rec, name)
		if err != nil {
			return FileEntry{}, err
		}
		source = staged
	}

	input := map[string]any{
		"originalSource": source,
		"filename":       name,
	}
	if rec.Alt != "" {
		input["alt"] = rec.Alt
	}
	if ct := contentTypeFor(rec.Kind); ct != "" {
		input["contentType"] = ct
	}

	var out struct {
		Files []destFileNode `json:"files"`
	}
	vars := map[string]any{"files": []map[string]any{input}}
	if err := execMutation(ctx, fs.Client, fileCreateMutation, "fileCreate", vars, &out); err != nil {
		return FileEntry{}, err
	}
	if len(out.Files) == 0 {
		return FileEntry{}, fmt.Errorf("fileCreate returned no file")
	}
	node := out.Files[0]
	// The CDN URL may lag while the platform processes the upload; the
	// filename key is what later runs match on, so an empty URL is fine.
	return FileEntry{ID: node.ID, URL: node.fileURL(), Alt: rec.Alt}, nil
}

// stageUpload pushes the blob through the staged-upload handshake and
// returns the resource URL fileCreate commits.
func (fs *FileSync) stageUpload(ctx context.Context, rec types.File, name string) (string, error) {
	blob, err := fs.download(ctx, rec.URL)
	if err != nil {
		return "", err
	}

	input := map[string]any{
		"filename":   name,
		"httpMethod": "POST",
		"resource":   stagedResourceFor(rec.Kind),
	}
	if rec.MimeType != "" {
		input["mimeType"] = rec.MimeType
	}

	var out struct {
		StagedTargets []struct {
			URL         string `json:"url"`
			ResourceURL string `json:"resourceUrl"`
			Parameters  []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"parameters"`
		} `json:"stagedTargets"`
	}
	vars := map[string]any{"input": []map[string]any{input}}
	if err := execMutation(ctx, fs.Client, stagedUploadsCreateMutation, "stagedUploadsCreate", vars, &out); err != nil {
		return "", err
	}
	if len(out.StagedTargets) == 0 {
		return "", fmt.Errorf("stagedUploadsCreate returned no target")
	}
	target := out.StagedTargets[0]

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, param := range target.Parameters {
		if err := w.WriteField(param.Name, param.Value); err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(blob); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := fs.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to push staged upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("staged upload to %s rejected: status %d", logging.RedactURL(target.URL), resp.StatusCode)
	}

	fs.logger.Debug("staged upload pushed", "file", name, "bytes", len(blob))
	return target.ResourceURL, nil
}

func (fs *FileSync) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := fs.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", logging.RedactURL(rawURL), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: status %d", logging.RedactURL(rawURL), resp.StatusCode)
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", logging.RedactURL(rawURL), err)
	}
	return blob, nil
}

// isPlatformCDN reports whether fileCreate can ingest the URL directly,
// skipping the staged upload.
func isPlatformCDN(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "cdn.shopify.com" || strings.HasSuffix(host, ".shopifycdn.com")
}

func contentTypeFor(kind string) string {
	switch kind {
	case "MediaImage":
		return "IMAGE"
	case "Video":
		return "VIDEO"
	case "GenericFile":
		return "FILE"
	}
	return ""
}

func stagedResourceFor(kind string) string {
	switch kind {
	case "MediaImage":
		return "IMAGE"
	case "Video":
		return "VIDEO"
	}
	return "FILE"
}

func (p *Pipeline) applyFiles(ctx context.Context, st *Stats) error {
	files, err := dump.ReadAll[types.File](filepath.Join(p.Dir, "files.jsonl"))
	if err != nil {
		return err
	}
	if err := p.files.LoadDestination(ctx); err != nil {
		return err
	}

	tasks := make([]task, 0, len(files))
	for _, rec := range files {
		name := rec.Filename
		if name == "" {
			name = index.Filename(rec.URL)
		}
		tasks = append(tasks, task{key: "file " + name, run: func(ctx context.Context) (action, error) {
			act, err := p.files.Sync(ctx, rec)
			if err != nil {
				return "", err
			}
			if d, ok := p.files.Lookup(name); ok {
				p.ix.SetFile(name, d.ID)
			}
			return act, nil
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}
