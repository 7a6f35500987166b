package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/auditwise/internal/asset"
	"github.com/joescharf/auditwise/internal/export"
	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/parser"
	"github.com/joescharf/auditwise/internal/scan"
	"github.com/joescharf/auditwise/internal/score"
	"github.com/joescharf/auditwise/internal/session"
	"github.com/joescharf/auditwise/internal/share"
	"github.com/joescharf/auditwise/internal/store"
)

// Server exposes the audit pipeline and saved audits as MCP tools.
type Server struct {
	store      store.Store
	scanner    *scan.Scanner
	scorer     *score.Scorer
	apiKey     string
	figmaToken string
	userID     string
}

// NewServer creates the MCP server wrapper. apiKey and figmaToken are used for
// scans that do not pass their own; userID owns saved audits.
func NewServer(s store.Store, scanner *scan.Scanner, apiKey, figmaToken, userID string) *Server {
	if userID == "" {
		userID = "local"
	}
	return &Server{
		store:      s,
		scanner:    scanner,
		scorer:     score.NewScorer(),
		apiKey:     apiKey,
		figmaToken: figmaToken,
		userID:     userID,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("auditwise", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.scanDesignTool())
	srv.AddTool(s.parseIssuesTool())
	srv.AddTool(s.listAuditsTool())
	srv.AddTool(s.getAuditTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.decodeShareTool())
	srv.AddTool(s.exportReportTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// auditwise_scan_design
func (s *Server) scanDesignTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("auditwise_scan_design",
		mcp.WithDescription("Audit a design for accessibility, UX, UI, layout and content issues. Returns the issue list with score. Uses a fixed sample set when no AI key is available."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Design type"), mcp.Enum("figma", "png", "pdf", "url")),
		mcp.WithString("url", mcp.Description("Figma file URL or website URL")),
		mcp.WithString("figma_token", mcp.Description("Figma personal access token (defaults to the configured token)")),
		mcp.WithString("file", mcp.Description("Local path to a PNG or PDF file")),
		mcp.WithString("depth", mcp.Description("Audit depth"), mcp.Enum("Quick", "Standard", "Deep")),
		mcp.WithString("api_key", mcp.Description("AI provider key (defaults to the configured key)")),
		mcp.WithBoolean("save", mcp.Description("Save the result as an audit")),
	)
	return tool, s.handleScanDesign
}

type scanOutput struct {
	Title    string         `json:"title"`
	Issues   []models.Issue `json:"issues"`
	Score    int            `json:"score"`
	Label    string         `json:"label"`
	UsedAI   bool           `json:"usedAI"`
	Fallback bool           `json:"fallback"`
	AuditID  string         `json:"auditId,omitempty"`
}

func (s *Server) handleScanDesign(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	designType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: type"), nil
	}

	in := models.DesignInput{
		Type:       models.DesignType(strings.ToLower(designType)),
		URL:        request.GetString("url", ""),
		FigmaToken: request.GetString("figma_token", ""),
		AuditDepth: models.AuditDepth(request.GetString("depth", "")),
		APIKey:     request.GetString("api_key", ""),
	}
	in = in.WithCredentials(s.apiKey, s.figmaToken)
	if path := request.GetString("file", ""); path != "" {
		img, err := asset.FromFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read file: %v", err)), nil
		}
		in.FileData = img.DataURL()
		in.FileName = filepath.Base(path)
	}
	if err := asset.Validate(in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.scanner.Execute(ctx, in)
	sc := s.scorer.Score(res.Issues)
	out := scanOutput{
		Title:    session.TitleFor(in),
		Issues:   res.Issues,
		Score:    sc.Score,
		Label:    sc.Label,
		UsedAI:   res.UsedAI,
		Fallback: res.Fallback,
	}

	if request.GetBool("save", false) {
		a := &models.Audit{
			UserID:         s.userID,
			Title:          out.Title,
			DesignType:     in.Type,
			DesignURL:      in.URL,
			DesignImageURL: res.DesignImage,
			AuditDepth:     in.Depth(),
			Issues:         res.Issues,
		}
		if err := s.store.CreateAudit(ctx, a); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save audit: %v", err)), nil
		}
		out.AuditID = a.ID
	}
	return jsonResult(out)
}

// auditwise_parse_issues
func (s *Server) parseIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("auditwise_parse_issues",
		mcp.WithDescription("Parse raw model output into normalized design issues. Unusable input yields the fixed sample set."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw model output")),
	)
	return tool, s.handleParseIssues
}

func (s *Server) handleParseIssues(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	return jsonResult(parser.Parse(text))
}

// auditwise_list_audits
func (s *Server) listAuditsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("auditwise_list_audits",
		mcp.WithDescription("List saved audits, newest first, with id, title, type, score and open issue count."),
	)
	return tool, s.handleListAudits
}

func (s *Server) handleListAudits(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	audits, err := s.store.ListAudits(ctx, s.userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list audits: %v", err)), nil
	}

	type auditOut struct {
		ID         string            `json:"id"`
		Title      string            `json:"title"`
		DesignType models.DesignType `json:"designType"`
		Score      int               `json:"score"`
		Label      string            `json:"label"`
		Open       int               `json:"open"`
		IsShared   bool              `json:"isShared"`
		CreatedAt  string            `json:"createdAt"`
	}

	out := make([]auditOut, len(audits))
	for i, a := range audits {
		sc := s.scorer.Score(a.Issues)
		out[i] = auditOut{
			ID:         a.ID,
			Title:      a.Title,
			DesignType: a.DesignType,
			Score:      a.Score,
			Label:      score.Label(a.Score),
			Open:       sc.Open,
			IsShared:   a.IsShared,
			CreatedAt:  a.CreatedAt.Format(time.RFC3339),
		}
	}
	return jsonResult(out)
}

// auditwise_get_audit
func (s *Server) getAuditTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("auditwise_get_audit",
		mcp.WithDescription("Get a saved audit with all of its issues."),
		mcp.WithString("audit_id", mcp.Required(), mcp.Description("Audit ID")),
	)
	return tool, s.handleGetAudit
}

func (s *Server) handleGetAudit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, errResult := s.ownedAudit(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(a)
}

func (s *Server) ownedAudit(ctx context.Context, request mcp.CallToolRequest) (*models.Audit, *mcp.CallToolResult) {
	id, err := request.RequireString("audit_id")
	if err != nil {
		return nil, mcp.NewToolResultError("missing required parameter: audit_id")
	}
	a, err := s.store.GetAudit(ctx, id)
	if err != nil || a.UserID != s.userID {
		return nil, mcp.NewToolResultError(fmt.Sprintf("audit not found: %s", id))
	}
	return a, nil
}

// auditwise_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("auditwise_update_issue",
		mcp.WithDescription("Resolve or reopen an issue of a saved audit. Returns the updated score."),
		mcp.WithString("audit_id", mcp.Required(), mcp.Description("Audit ID")),
		mcp.WithNumber("issue", mcp.Required(), mcp.Description("Issue number within the audit")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status"), mcp.Enum("open", "resolved")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, errResult := s.ownedAudit(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	n := request.GetInt("issue", 0)
	if n <= 0 {
		return mcp.NewToolResultError("missing required parameter: issue"), nil
	}
	status := models.IssueStatus(strings.ToLower(request.GetString("status", "")))
	if status != models.IssueStatusOpen && status != models.IssueStatusResolved {
		return mcp.NewToolResultError(fmt.Sprintf("invalid status %q", status)), nil
	}

	updated, err := s.store.UpdateIssueStatus(ctx, a.ID, n, status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update issue: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Issue #%d of %q is now %s. Score: %d (%s)",
		n, updated.Title, status, updated.Score, score.Label(updated.Score))), nil
}

// auditwise_decode_share
func (s *Server) decodeShareTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("auditwise_decode_share",
		mcp.WithDescription("Decode a share link (or its data parameter) into the shared audit snapshot."),
		mcp.WithString("link", mcp.Required(), mcp.Description("Share link or raw data value")),
	)
	return tool, s.handleDecodeShare
}

func (s *Server) handleDecodeShare(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	link, err := request.RequireString("link")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: link"), nil
	}

	var p share.Payload
	if strings.Contains(link, "?") {
		p, err = share.DecodeLink(link)
	} else {
		p, err = share.Decode(link)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p)
}

// auditwise_export_report
func (s *Server) exportReportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("auditwise_export_report",
		mcp.WithDescription("Render the report of a saved audit as plain text or HTML."),
		mcp.WithString("audit_id", mcp.Required(), mcp.Description("Audit ID")),
		mcp.WithString("format", mcp.Description("Report format (default: text)"), mcp.Enum("text", "html")),
	)
	return tool, s.handleExportReport
}

func (s *Server) handleExportReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, errResult := s.ownedAudit(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	rep := export.Report{
		Title:      a.Title,
		DesignType: a.DesignType,
		AuditDepth: a.AuditDepth,
		Issues:     a.Issues,
		Generated:  time.Now(),
	}

	switch request.GetString("format", "text") {
	case "html":
		var b strings.Builder
		if err := export.HTML(&b, rep); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to render report: %v", err)), nil
		}
		return mcp.NewToolResultText(b.String()), nil
	default:
		return mcp.NewToolResultText(export.Text(rep)), nil
	}
}
