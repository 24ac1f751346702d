package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/velocity/internal/notebook"
	"github.com/starford/velocity/internal/testutil"
)

func testServer(t *testing.T) (*Server, *notebook.NoteBook) {
	t.Helper()
	nb, _ := testutil.TestNotebook(t)
	return New(nb, "test"), nb
}

// callTool invokes a tool handler directly; mcp-go has no in-process call helper.
func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "rename_note":
		result, err = srv.renameNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]any{
		"title":   "test",
		"content": "Hello",
	})
	if text := resultText(r); text != "created: test" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]any{"title": "test"})
	if text := resultText(r); text != "Hello" {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateNote_Errors(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_note", map[string]any{"title": "a"})

	for _, args := range []map[string]any{
		{},
		{"title": "a"},
		{"title": "../outside"},
	} {
		if r := callTool(t, srv, "create_note", args); !r.IsError {
			t.Errorf("create %v should fail, got %q", args, resultText(r))
		}
	}
}

func TestListNotes(t *testing.T) {
	srv, nb := testServer(t)
	for _, title := range []string{"a", "work/b", "work/c"} {
		if _, err := nb.Create(title); err != nil {
			t.Fatal(err)
		}
	}

	all := strings.Split(resultText(callTool(t, srv, "list_notes", map[string]any{})), "\n")
	if len(all) != 3 {
		t.Errorf("list = %v, want 3 titles", all)
	}
	work := strings.Split(resultText(callTool(t, srv, "list_notes", map[string]any{"folder": "work/"})), "\n")
	if len(work) != 2 {
		t.Errorf("list work = %v, want 2 titles", work)
	}
	if text := resultText(callTool(t, srv, "list_notes", map[string]any{"folder": "none"})); text != "no notes found" {
		t.Errorf("list none = %q", text)
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_note", map[string]any{"title": "recipe", "content": "flour sugar eggs"})
	callTool(t, srv, "create_note", map[string]any{"title": "todo", "content": "buy sugar"})

	r := callTool(t, srv, "search_notes", map[string]any{"query": "sugar flour"})
	var results []noteResult
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatalf("decode: %v (%q)", err, resultText(r))
	}
	if len(results) != 1 || results[0].Title != "recipe" {
		t.Errorf("results = %+v", results)
	}

	if r := callTool(t, srv, "search_notes", map[string]any{}); !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestRenameAndDeleteNote(t *testing.T) {
	srv, nb := testServer(t)
	callTool(t, srv, "create_note", map[string]any{"title": "old"})

	r := callTool(t, srv, "rename_note", map[string]any{"title": "old", "new_title": "new"})
	if r.IsError {
		t.Fatalf("rename: %s", resultText(r))
	}
	if _, ok := nb.Get("new"); !ok {
		t.Error("renamed note not indexed")
	}

	if r := callTool(t, srv, "delete_note", map[string]any{"title": "new"}); r.IsError {
		t.Fatalf("delete: %s", resultText(r))
	}
	if len(nb.List()) != 0 {
		t.Error("note not deleted")
	}
	if r := callTool(t, srv, "delete_note", map[string]any{"title": "new"}); !r.IsError {
		t.Error("expected error deleting a missing note")
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"title": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestConventionsResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readConventions(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	for _, want := range []string{"`.txt`", "`.md`", "`tmp`"} {
		if !strings.Contains(text, want) {
			t.Errorf("conventions missing %s:\n%s", want, text)
		}
	}
}
