// Package testutil provides shared test helpers for setting up vaults,
// ledgers, and a fake content service.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/halvard/raido/internal/contentservice"
	"github.com/halvard/raido/internal/exportlog"
	"github.com/halvard/raido/internal/storage"
)

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestLogDB creates a temporary export ledger that is automatically cleaned up.
func TestLogDB(t *testing.T) *exportlog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := exportlog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FakeService is an in-memory stand-in for the content service. It serves
// upload, asset lookup, and entry creation endpoints over httptest and
// records every call for assertions.
type FakeService struct {
	mu sync.Mutex

	srv    *httptest.Server
	nextID int

	// Assets maps stored asset URL to its descriptor, seeded via AddAsset
	// and grown by uploads.
	Assets map[string]contentservice.Asset

	// Uploads lists the filenames received by the upload endpoint in order.
	Uploads []string

	// Entries lists the payloads received by entry creation in order.
	Entries []map[string]any

	// FailUploads makes the upload endpoint return 500 for matching filenames.
	FailUploads map[string]bool

	// EntryStatus, when non-zero, is returned by entry creation instead
	// of a created entry. EntryError is its error body message.
	EntryStatus int
	EntryError  string
}

// NewFakeService starts a fake content service. It is shut down via t.Cleanup.
func NewFakeService(t *testing.T) *FakeService {
	t.Helper()
	f := &FakeService{
		nextID:      100,
		Assets:      make(map[string]contentservice.Asset),
		FailUploads: make(map[string]bool),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the fake service's base URL.
func (f *FakeService) URL() string { return f.srv.URL }

// Client returns a real contentservice client pointed at the fake.
func (f *FakeService) Client() *contentservice.Client {
	return contentservice.NewClient(f.srv.URL, "test-token", 0)
}

// AddAsset seeds a stored asset reachable via URL lookup.
func (f *FakeService) AddAsset(a contentservice.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Assets[a.URL] = a
}

// UploadCount returns how many uploads the service received.
func (f *FakeService) UploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Uploads)
}

// EntryCount returns how many entry creations the service received.
func (f *FakeService) EntryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Entries)
}

// LastEntry returns the payload of the most recent entry creation.
func (f *FakeService) LastEntry(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Entries) == 0 {
		t.Fatal("no entries created")
	}
	return f.Entries[len(f.Entries)-1]
}

func (f *FakeService) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/upload/files":
		f.handleLookup(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/upload":
		f.handleUpload(w, r)
	case r.Method == http.MethodPost:
		f.handleCreate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeService) handleLookup(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := r.URL.Query().Get("filters[url][$eq]")
	if a, ok := f.Assets[target]; ok {
		writeJSON(w, http.StatusOK, []contentservice.Asset{a})
		return
	}
	writeJSON(w, http.StatusOK, []contentservice.Asset{})
}

func (f *FakeService) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "no files field", http.StatusBadRequest)
		return
	}
	filename := files[0].Filename

	var info contentservice.FileInfo
	if raw := r.FormValue("fileInfo"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &info)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailUploads[filename] {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "upload rejected"},
		})
		return
	}

	f.nextID++
	asset := contentservice.Asset{
		ID:              f.nextID,
		Name:            filename,
		URL:             f.srv.URL + "/uploads/" + filename,
		AlternativeText: info.AlternativeText,
	}
	f.Uploads = append(f.Uploads, filename)
	f.Assets[asset.URL] = asset
	writeJSON(w, http.StatusCreated, []contentservice.Asset{asset})
}

func (f *FakeService) handleCreate(w http.ResponseWriter, r *http.Request) {
	var wrapped struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&wrapped); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.EntryStatus != 0 {
		writeJSON(w, f.EntryStatus, map[string]any{
			"error": map[string]any{"message": f.EntryError},
		})
		return
	}

	f.nextID++
	f.Entries = append(f.Entries, wrapped.Data)
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"id": f.nextID},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("testutil: encode response: %v", err))
	}
}

// WriteDoc writes a Markdown document into the vault directory.
func WriteDoc(t *testing.T, store storage.Provider, path, content string) {
	t.Helper()
	if err := store.Write(path, []byte(content)); err != nil {
		t.Fatal(err)
	}
}

// HostedURL builds an asset URL under the fake service's uploads prefix.
func (f *FakeService) HostedURL(name string) string {
	return f.srv.URL + "/uploads/" + strings.TrimPrefix(name, "/")
}
