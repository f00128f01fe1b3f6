package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Hash fields written for each session.
const (
	fieldPending   = "pending_transcription"
	fieldPatient   = "pending_patient_id"
	fieldRaw       = "raw_transcription"
	fieldSegments  = "segments"
	fieldFallback  = "fallback"
	fieldAudio     = "audio_path"
	fieldStartedAt = "started_at"
	fieldEndedAt   = "ended_at"
)

// Redis stores the pending transcription in a per-session hash that expires
// after ttl, where the review stage picks it up.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(sessionID string) string { return r.prefix + sessionID }

func (r *Redis) Handoff(ctx context.Context, a Artifact) error {
	segments, err := json.Marshal(a.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	key := r.key(a.SessionID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldPending, a.Body(),
			fieldPatient, a.PatientID,
			fieldRaw, a.Text,
			fieldSegments, string(segments),
			fieldFallback, strconv.FormatBool(a.Fallback),
			fieldAudio, a.AudioPath,
			fieldStartedAt, a.StartedAt.UTC().Format(time.RFC3339),
			fieldEndedAt, a.EndedAt.UTC().Format(time.RFC3339),
		)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis handoff %s: %w", key, err)
	}
	return nil
}

// TakePending returns the pending transcription for the session and clears
// it, but only when it was recorded for patientID.
func (r *Redis) TakePending(ctx context.Context, sessionID, patientID string) (string, error) {
	key := r.key(sessionID)
	vals, err := r.client.HMGet(ctx, key, fieldPending, fieldPatient).Result()
	if err != nil {
		return "", fmt.Errorf("redis HMGET %s: %w", key, err)
	}
	text, _ := vals[0].(string)
	patient, _ := vals[1].(string)
	if text == "" || patient != patientID {
		return "", ErrNoPending
	}
	n, err := r.client.HDel(ctx, key, fieldPending, fieldPatient).Result()
	if err != nil {
		return "", fmt.Errorf("redis HDEL %s: %w", key, err)
	}
	if n == 0 {
		// taken concurrently
		return "", ErrNoPending
	}
	return text, nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
