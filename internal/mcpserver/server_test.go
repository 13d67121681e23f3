package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/resolve"
	"github.com/halvard/raido/internal/retry"
	"github.com/halvard/raido/internal/storage"
	"github.com/halvard/raido/internal/testutil"
	"github.com/halvard/raido/internal/uploader"
)

func testRoutes() []export.Route {
	return []export.Route{
		{
			Name:         "articles",
			Collection:   "api/articles",
			ContentField: "content",
			Mappings: map[string]export.FieldMapping{
				"title": {Source: export.SourceMetadata, Key: "title", Required: true},
			},
		},
	}
}

func testServer(t *testing.T) (*Server, storage.Provider, *testutil.FakeService) {
	t.Helper()

	svc := testutil.NewFakeService(t)
	_, store := testutil.TestVault(t)
	db := testutil.TestLogDB(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := svc.Client()
	up := uploader.New(client, store, logger, uploader.Config{
		Window: 2,
		Delay:  time.Millisecond,
		Policy: retry.Policy{Mode: retry.ModeFixed, Initial: time.Millisecond},
	})
	exp := export.New(store, client, up, resolve.New(client, logger), logger, export.WithLog(db))

	return New(exp, db, testRoutes()), store, svc
}

func toolReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", r.Content[0])
	}
	return tc.Text
}

func TestExportNote(t *testing.T) {
	srv, store, svc := testServer(t)
	testutil.WriteDoc(t, store, "notes/a.md", "---\ntitle: A\n---\nbody ![[pic.png]]\n")
	testutil.WriteDoc(t, store, "pic.png", "png bytes")

	res, err := srv.exportNote(context.Background(), toolReq("export_note", map[string]any{
		"path":  "notes/a.md",
		"route": "articles",
	}))
	if err != nil {
		t.Fatalf("exportNote: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var out struct {
		Result export.Result `json:"result"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Result.EntryID == 0 || out.Result.Uploaded != 1 {
		t.Errorf("result = %+v", out.Result)
	}
	if svc.EntryCount() != 1 {
		t.Errorf("entries = %d", svc.EntryCount())
	}
}

func TestExportNote_UnknownRoute(t *testing.T) {
	srv, store, _ := testServer(t)
	testutil.WriteDoc(t, store, "notes/a.md", "---\ntitle: A\n---\nbody\n")

	res, err := srv.exportNote(context.Background(), toolReq("export_note", map[string]any{
		"path":  "notes/a.md",
		"route": "nope",
	}))
	if err != nil {
		t.Fatalf("exportNote: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result for unknown route")
	}
}

func TestExportNote_MissingArgs(t *testing.T) {
	srv, _, _ := testServer(t)
	res, err := srv.exportNote(context.Background(), toolReq("export_note", map[string]any{}))
	if err != nil {
		t.Fatalf("exportNote: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result for missing path")
	}
}

func TestListRoutes(t *testing.T) {
	srv, _, _ := testServer(t)
	res, err := srv.listRoutes(context.Background(), toolReq("list_routes", nil))
	if err != nil {
		t.Fatalf("listRoutes: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, `"articles"`) || !strings.Contains(text, `"api/articles"`) {
		t.Errorf("routes text = %s", text)
	}
}

func TestExportHistory(t *testing.T) {
	srv, store, _ := testServer(t)
	testutil.WriteDoc(t, store, "notes/a.md", "---\ntitle: A\n---\nbody\n")

	if res, _ := srv.exportNote(context.Background(), toolReq("export_note", map[string]any{
		"path": "notes/a.md", "route": "articles",
	})); res.IsError {
		t.Fatalf("export failed: %s", resultText(t, res))
	}

	res, err := srv.exportHistory(context.Background(), toolReq("export_history", map[string]any{
		"limit": float64(10),
	}))
	if err != nil {
		t.Fatalf("exportHistory: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, `"status":"ok"`) || !strings.Contains(text, "notes/a.md") {
		t.Errorf("history = %s", text)
	}
}

func TestGetFrontmatterContract(t *testing.T) {
	srv, _, _ := testServer(t)
	res, err := srv.getFrontmatterContract(context.Background(), toolReq("get_frontmatter_contract", nil))
	if err != nil {
		t.Fatalf("getFrontmatterContract: %v", err)
	}
	if !strings.Contains(resultText(t, res), "frontmatter") {
		t.Errorf("contract text = %s", resultText(t, res))
	}
}

func TestReadContractResource(t *testing.T) {
	srv, _, _ := testServer(t)
	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("readContractResource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != "raido://frontmatter-contract" || tc.Text == "" {
		t.Errorf("contents = %+v", contents[0])
	}
}
