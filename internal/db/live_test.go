package db

import (
	"fmt"
	"os"
	"testing"
)

// TestLiveDatabase opens the real scribe database and prints recent sessions.
// Skipped if the database doesn't exist.
func TestLiveDatabase(t *testing.T) {
	dbPath := DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Skip("database not found at", dbPath)
	}

	store, err := OpenReadOnly(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	sessions, err := store.Sessions(5)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions in database")
		return
	}

	for _, sess := range sessions {
		segs, err := store.SegmentsForSession(sess.ID)
		if err != nil {
			t.Fatalf("SegmentsForSession: %v", err)
		}
		fmt.Printf("%s patient=%s status=%s started=%s segments=%d\n",
			sess.ID, sess.PatientID, sess.Status, sess.StartedAt.Format("2006-01-02 15:04:05"), len(segs))
	}
}
