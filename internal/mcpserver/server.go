// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notebook tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/velocity/internal/models"
	"github.com/starford/velocity/internal/notebook"
)

// Server wraps the MCP server with notebook tools.
type Server struct {
	mcp *server.MCPServer
	nb  *notebook.NoteBook
}

// New creates a new MCP server with all notebook tools registered.
func New(nb *notebook.NoteBook, version string) *Server {
	s := &Server{nb: nb}

	s.mcp = server.NewMCPServer(
		"Velocity",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List note titles, most recently modified first."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Find notes whose title or content contains every word of the query. "+
			"Lowercase queries ignore case."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Space separated search words")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title, e.g. work/standup")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Read the "+conventionsURI+" resource for title rules."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the new note, optionally ending in a recognized extension")),
		mcp.WithString("content", mcp.Description("Optional initial content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Rename or move a note."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Current title")),
		mcp.WithString("new_title", mcp.Required(), mcp.Description("New title")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note file."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the note to delete")),
	), s.deleteNote)

	s.mcp.AddResource(
		mcp.NewResource(conventionsURI, "Notebook Conventions",
			mcp.WithResourceDescription("How note titles, extensions and search work in this notebook."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventions,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type noteResult struct {
	Title      string `json:"title"`
	Filename   string `json:"filename"`
	ModifiedAt string `json:"modified_at"`
}

func toResults(notes []models.Note) []noteResult {
	out := make([]noteResult, len(notes))
	for i, n := range notes {
		out[i] = noteResult{Title: n.Title, Filename: n.Filename(), ModifiedAt: n.ModifiedAt.Format(time.RFC3339)}
	}
	return out
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")

	var titles []string
	for _, n := range s.nb.List() {
		if folder == "" || strings.HasPrefix(n.Title, folder+string(os.PathSeparator)) {
			titles = append(titles, n.Title)
		}
	}
	if len(titles) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(titles, "\n")), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(toResults(s.nb.Search(query)), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, content, err := s.nb.Read(title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.nb.Create(title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if content := req.GetString("content", ""); content != "" {
		if _, err := s.nb.Write(n.Title, []byte(content), ""); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.Title)), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newTitle, err := req.RequireString("new_title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.nb.Rename(title, newTitle)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: %s -> %s", title, n.Title)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.nb.Delete(title); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", title)), nil
}

func (s *Server) readConventions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      conventionsURI,
			MIMEType: "text/markdown",
			Text:     Conventions(s.nb),
		},
	}, nil
}
