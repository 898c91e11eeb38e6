// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes randpic tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/dispatch"
	"github.com/starford/randpic/internal/models"
)

const guideURI = "randpic://guide"

// Engine is the dispatch service as seen by the tools.
type Engine interface {
	Dispatch(ctx context.Context, trigger, userID, groupID string) (dispatch.Result, error)
	AddImage(ctx context.Context, keyword string, data []byte, nameHint string) (dispatch.AddResult, error)
	CreateKeyword(ctx context.Context, name string) (models.Keyword, error)
	Keywords(ctx context.Context) ([]dispatch.KeywordStat, error)
	RegisterAlias(ctx context.Context, alias, keyword string) (models.Alias, error)
	RemoveAlias(ctx context.Context, alias string) error
	Aliases() []models.Alias
	UsageCounts(ctx context.Context, f models.UsageFilter) ([]models.UsageCount, error)
}

// Server wraps the MCP server with randpic tools.
type Server struct {
	mcp     *server.MCPServer
	eng     Engine
	fetcher *fetcher
}

// Option configures a Server.
type Option func(*Server)

// WithHostCheck replaces the check applied to every download host and
// redirect target.
func WithHostCheck(check func(host string) error) Option {
	return func(s *Server) { s.fetcher.checkHost = check }
}

// New creates a new MCP server with all randpic tools registered.
func New(eng Engine, opts ...Option) *Server {
	s := &Server{eng: eng, fetcher: newFetcher()}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"randpic",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("dispatch",
		mcp.WithDescription("Resolve a trigger (keyword or alias) and return a random image from its collection. "+
			"Each delivered image costs the user one unit of quota."),
		mcp.WithString("trigger", mcp.Required(), mcp.Description("Keyword or alias")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Requesting user")),
		mcp.WithString("group_id", mcp.Description("Originating group, if any")),
	), s.dispatch)

	s.mcp.AddTool(mcp.NewTool("add_image",
		mcp.WithDescription("Download an image and add it to a keyword collection, creating the keyword if needed. "+
			"Identical content already in the collection is not stored twice."),
		mcp.WithString("keyword", mcp.Required(), mcp.Description("Target keyword")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI of the image")),
		mcp.WithString("filename", mcp.Description("Optional original file name, used for the extension")),
	), s.addImage)

	s.mcp.AddTool(mcp.NewTool("create_keyword",
		mcp.WithDescription("Create an empty keyword collection."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Keyword name; a single directory name")),
	), s.createKeyword)

	s.mcp.AddTool(mcp.NewTool("register_alias",
		mcp.WithDescription("Make an alias trigger the images of an existing keyword."),
		mcp.WithString("alias", mcp.Required(), mcp.Description("New alias")),
		mcp.WithString("keyword", mcp.Required(), mcp.Description("Existing keyword")),
	), s.registerAlias)

	s.mcp.AddTool(mcp.NewTool("remove_alias",
		mcp.WithDescription("Remove an alias. The keyword and its images are kept."),
		mcp.WithString("alias", mcp.Required(), mcp.Description("Alias to remove")),
	), s.removeAlias)

	s.mcp.AddTool(mcp.NewTool("list_keywords",
		mcp.WithDescription("List keywords in creation order with their image counts."),
	), s.listKeywords)

	s.mcp.AddTool(mcp.NewTool("list_aliases",
		mcp.WithDescription("List all aliases and their target keywords."),
	), s.listAliases)

	s.mcp.AddTool(mcp.NewTool("usage_counts",
		mcp.WithDescription("Count dispatches per keyword, group and user."),
		mcp.WithString("keyword", mcp.Description("Only this keyword")),
		mcp.WithString("user_id", mcp.Description("Only this user")),
		mcp.WithString("group_id", mcp.Description("Only this group")),
	), s.usageCounts)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "randpic guide",
			mcp.WithResourceDescription("How triggers, aliases, quota and ingestion behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuide,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func optionalString(req mcp.CallToolRequest, name string) string {
	if v, err := req.RequireString(name); err == nil {
		return v
	}
	return ""
}

func (s *Server) dispatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trigger, err := req.RequireString("trigger")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	user, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.eng.Dispatch(ctx, trigger, user, optionalString(req, "group_id"))
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownTrigger) {
			return mcp.NewToolResultText(fmt.Sprintf("no keyword or alias matches %q", trigger)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) addImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword, err := req.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, hint, err := s.fetcher.load(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if name := optionalString(req, "filename"); name != "" {
		hint = sanitizeFilename(name)
	}

	res, err := s.eng.AddImage(ctx, keyword, data, hint)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) createKeyword(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k, err := s.eng.CreateKeyword(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(k)
}

func (s *Server) registerAlias(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alias, err := req.RequireString("alias")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	keyword, err := req.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.eng.RegisterAlias(ctx, alias, keyword)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a)
}

func (s *Server) removeAlias(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alias, err := req.RequireString("alias")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.eng.RemoveAlias(ctx, alias); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s", alias)), nil
}

func (s *Server) listKeywords(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.eng.Keywords(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (s *Server) listAliases(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.eng.Aliases())
}

func (s *Server) usageCounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := s.eng.UsageCounts(ctx, models.UsageFilter{
		Keyword: optionalString(req, "keyword"),
		UserID:  optionalString(req, "user_id"),
		GroupID: optionalString(req, "group_id"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if counts == nil {
		counts = []models.UsageCount{}
	}
	return jsonResult(counts)
}

func (s *Server) readGuide(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     Guide,
		},
	}, nil
}
