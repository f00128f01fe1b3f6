package handoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "scribe:session:", time.Hour), mr
}

func TestRedisHandoff(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	a := Artifact{
		SessionID: "sess-1",
		PatientID: "P-1001",
		Text:      "tooth 14 has a crack",
		Processed: "tooth 14, has a crack.",
		Segments:  []string{"tooth 14", "has a crack"},
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		EndedAt:   time.Date(2026, 1, 2, 3, 9, 5, 0, time.UTC),
	}
	if err := r.Handoff(ctx, a); err != nil {
		t.Fatalf("Handoff: %v", err)
	}

	key := "scribe:session:sess-1"
	if got := mr.HGet(key, "pending_transcription"); got != a.Processed {
		t.Errorf("pending_transcription = %q, want %q", got, a.Processed)
	}
	if got := mr.HGet(key, "raw_transcription"); got != a.Text {
		t.Errorf("raw_transcription = %q", got)
	}
	if got := mr.HGet(key, "segments"); got != `["tooth 14","has a crack"]` {
		t.Errorf("segments = %q", got)
	}
	if got := mr.HGet(key, "fallback"); got != "false" {
		t.Errorf("fallback = %q", got)
	}
	if got := mr.HGet(key, "started_at"); got != "2026-01-02T03:04:05Z" {
		t.Errorf("started_at = %q", got)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("ttl = %s, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if mr.Exists(key) {
		t.Error("session hash should expire")
	}
}

func TestRedisTakePending(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	if err := r.Handoff(ctx, Artifact{SessionID: "s1", PatientID: "P-1", Text: "note"}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.TakePending(ctx, "s1", "P-2"); !errors.Is(err, ErrNoPending) {
		t.Errorf("other patient: err = %v, want ErrNoPending", err)
	}

	text, err := r.TakePending(ctx, "s1", "P-1")
	if err != nil {
		t.Fatalf("TakePending: %v", err)
	}
	if text != "note" {
		t.Errorf("text = %q, want %q", text, "note")
	}

	if _, err := r.TakePending(ctx, "s1", "P-1"); !errors.Is(err, ErrNoPending) {
		t.Errorf("second take: err = %v, want ErrNoPending", err)
	}
}

func TestRedisTakePendingMissingSession(t *testing.T) {
	r, _ := newTestRedis(t)
	if _, err := r.TakePending(context.Background(), "nope", ""); !errors.Is(err, ErrNoPending) {
		t.Errorf("err = %v, want ErrNoPending", err)
	}
}

func TestRedisPing(t *testing.T) {
	r, mr := newTestRedis(t)
	if err := r.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	mr.Close()
	if err := r.Ping(context.Background()); err == nil {
		t.Error("expected ping error after server closed")
	}
}
