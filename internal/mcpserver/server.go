// Package mcpserver exposes handed-off sessions to MCP clients.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/scribe-notes/scribe/internal/db"
	"github.com/scribe-notes/scribe/internal/handoff"
)

// Store is the part of db.Store the tools need.
type Store interface {
	Sessions(limit int) ([]db.Session, error)
	Transcript(sessionID string) (*db.Transcript, error)
	SegmentsForSession(sessionID string) ([]db.Segment, error)
	PendingTranscript(patientID string) (*db.Transcript, error)
}

// New builds the MCP server with the session tools registered.
func New(store Store, version string) *server.MCPServer {
	s := server.NewMCPServer("scribe", version, server.WithToolCapabilities(false))
	h := &handlers{store: store}

	s.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List recent dictation sessions, newest first"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of sessions (default 20)")),
	), h.listSessions)

	s.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Get the transcript and segments of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), h.getTranscript)

	s.AddTool(mcp.NewTool("pending_transcript",
		mcp.WithDescription("Take the newest transcript waiting for review for a patient. The transcript is marked reviewed."),
		mcp.WithString("patient_id", mcp.Required(), mcp.Description("Patient ID")),
	), h.pendingTranscript)

	return s
}

type handlers struct {
	store Store
}

func (h *handlers) listSessions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	sessions, err := h.store.Sessions(limit)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("list sessions", err), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No sessions."), nil
	}

	var b strings.Builder
	for _, s := range sessions {
		fmt.Fprintf(&b, "%s  %s  patient=%s  status=%s", s.ID, s.StartedAt.Format("2006-01-02 15:04"), orDash(s.PatientID), s.Status)
		if s.Fallback {
			b.WriteString("  (display fallback)")
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *handlers) getTranscript(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tr, err := h.store.Transcript(id)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("get transcript", err), nil
	}
	if tr == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no transcript for session %s", id)), nil
	}
	segs, err := h.store.SegmentsForSession(id)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("get segments", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nPatient: %s\n\n%s\n", tr.SessionID, orDash(tr.PatientID), tr.Processed)
	if len(segs) > 0 {
		b.WriteString("\nSegments:\n")
		for _, s := range segs {
			fmt.Fprintf(&b, "%d. %s\n", s.SequenceNumber+1, s.Text)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *handlers) pendingTranscript(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patient, err := req.RequireString("patient_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := handoff.ValidatePatientID(patient); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tr, err := h.store.PendingTranscript(strings.TrimSpace(patient))
	if errors.Is(err, handoff.ErrNoPending) {
		return mcp.NewToolResultText("No pending transcript."), nil
	}
	if err != nil {
		return mcp.NewToolResultErrorFromErr("take pending transcript", err), nil
	}
	return mcp.NewToolResultText(tr.Processed), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
