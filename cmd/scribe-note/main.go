// Command scribe-note turns a handed-off dictation into a clinical note.
//
// The transcription comes from one of: the SQLite store (-patient), the Redis
// session store (-patient with -session), or a text file (-file).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scribe-notes/scribe/internal/config"
	"github.com/scribe-notes/scribe/internal/db"
	"github.com/scribe-notes/scribe/internal/handoff"
	"github.com/scribe-notes/scribe/internal/log"
	"github.com/scribe-notes/scribe/internal/notes"
	"github.com/scribe-notes/scribe/internal/transcript"
)

func main() {
	configFlag := flag.String("config", "", "YAML configuration file")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location)")
	patientFlag := flag.String("patient", "", "Patient ID whose pending transcription to use")
	sessionFlag := flag.String("session", "", "Take the transcription from this Redis session instead of SQLite")
	fileFlag := flag.String("file", "", "Read the transcription from a text file")
	nameFlag := flag.String("name", "", "Patient name for the note")
	dentistFlag := flag.String("dentist", "", "Dentist name for the note (default: Doctor)")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fail(err)
	}
	if logPath, err := log.ResolveDir(*logPathFlag); err == nil {
		log.SetDir(logPath)
		if err := log.Init(); err == nil {
			defer log.Close()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	text, err := transcription(ctx, cfg, *patientFlag, *sessionFlag, *fileFlag)
	if errors.Is(err, handoff.ErrNoPending) {
		fmt.Fprintln(os.Stderr, "No pending transcription.")
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}

	gen := notes.New(notes.Config{
		BaseURL:  cfg.Notes.BaseURL,
		APIKey:   os.Getenv(cfg.Notes.APIKeyEnv),
		Model:    cfg.Notes.Model,
		Template: cfg.Notes.Template,
	})
	note, err := gen.Generate(ctx, notes.Request{
		PatientName:   *nameFlag,
		DentistName:   *dentistFlag,
		Transcription: text,
	})
	if err != nil && note.Text == "" {
		fail(err)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (basic note generated)\n", err)
	}
	fmt.Println(note.Text)
}

func transcription(ctx context.Context, cfg *config.Config, patientID, sessionID, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read transcription: %w", err)
		}
		return transcript.Normalize(string(data)), nil
	}

	if err := handoff.ValidatePatientID(patientID); err != nil {
		return "", err
	}
	patientID = strings.TrimSpace(patientID)

	if sessionID != "" {
		r := cfg.Handoff.Redis
		if r.Addr == "" {
			return "", errors.New("handoff.redis.addr is not configured")
		}
		client := redis.NewClient(&redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
		defer client.Close()
		return handoff.NewRedis(client, r.Prefix, r.TTL).TakePending(ctx, sessionID, patientID)
	}

	path := cfg.Handoff.Database
	if path == "" {
		path = db.DefaultDBPath()
	}
	store, err := db.Open(path)
	if err != nil {
		return "", err
	}
	defer store.Close()
	tr, err := store.PendingTranscript(patientID)
	if err != nil {
		return "", err
	}
	return tr.Processed, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
