package handoff

import (
	"context"
	"fmt"

	cb "github.com/atotto/clipboard"
)

// Clipboard copies the artifact body to the system clipboard.
type Clipboard struct {
	write func(string) error
}

func NewClipboard() *Clipboard {
	return &Clipboard{write: cb.WriteAll}
}

// Available reports whether a clipboard utility was found.
func (c *Clipboard) Available() bool { return !cb.Unsupported }

func (c *Clipboard) Handoff(_ context.Context, a Artifact) error {
	if err := c.write(a.Body()); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
