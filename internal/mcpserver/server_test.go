package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/scribe-notes/scribe/internal/db"
	"github.com/scribe-notes/scribe/internal/handoff"
)

func seededStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	err = store.Handoff(context.Background(), handoff.Artifact{
		SessionID: "sess-1",
		PatientID: "P-100",
		Text:      "tooth 14 has a crack",
		Processed: "tooth 14, has a crack.",
		Segments:  []string{"tooth 14", "has a crack"},
		StartedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestListSessions(t *testing.T) {
	h := &handlers{store: seededStore(t)}
	res, err := h.listSessions(context.Background(), call("list_sessions", map[string]any{"limit": 5}))
	if err != nil {
		t.Fatal(err)
	}
	out := resultText(t, res)
	if !strings.Contains(out, "sess-1") || !strings.Contains(out, "patient=P-100") {
		t.Errorf("list = %q", out)
	}
}

func TestGetTranscript(t *testing.T) {
	h := &handlers{store: seededStore(t)}
	res, err := h.getTranscript(context.Background(), call("get_transcript", map[string]any{"session_id": "sess-1"}))
	if err != nil {
		t.Fatal(err)
	}
	out := resultText(t, res)
	for _, want := range []string{"tooth 14, has a crack.", "1. tooth 14", "2. has a crack"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestGetTranscriptMissing(t *testing.T) {
	h := &handlers{store: seededStore(t)}

	res, _ := h.getTranscript(context.Background(), call("get_transcript", map[string]any{"session_id": "nope"}))
	if !res.IsError {
		t.Error("expected tool error for unknown session")
	}

	res, _ = h.getTranscript(context.Background(), call("get_transcript", nil))
	if !res.IsError {
		t.Error("expected tool error for missing session_id")
	}
}

func TestPendingTranscript(t *testing.T) {
	h := &handlers{store: seededStore(t)}
	ctx := context.Background()

	res, _ := h.pendingTranscript(ctx, call("pending_transcript", map[string]any{"patient_id": "P-100"}))
	if got := resultText(t, res); got != "tooth 14, has a crack." {
		t.Errorf("first take = %q", got)
	}

	res, _ = h.pendingTranscript(ctx, call("pending_transcript", map[string]any{"patient_id": "P-100"}))
	if got := resultText(t, res); got != "No pending transcript." {
		t.Errorf("second take = %q", got)
	}

	res, _ = h.pendingTranscript(ctx, call("pending_transcript", map[string]any{"patient_id": "x"}))
	if !res.IsError {
		t.Error("expected tool error for invalid patient id")
	}
}

func TestNewRegistersTools(t *testing.T) {
	s := New(seededStore(t), "test")
	msg := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"list_sessions", "get_transcript", "pending_transcript"} {
		if !strings.Contains(string(data), `"`+name+`"`) {
			t.Errorf("tool %q not listed in %s", name, data)
		}
	}
}
