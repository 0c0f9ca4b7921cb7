package client

import (
	"strings"
	"sync"
)

// Key identifies a keystroke the composer cares about.
type Key int

const (
	KeyRune Key = iota
	KeyEnter
)

// Composer is the draft buffer of the send pipeline. A plain Enter
// submits; Shift+Enter inserts a newline instead.
type Composer struct {
	mu    sync.Mutex
	draft strings.Builder
}

// Insert appends text to the draft.
func (c *Composer) Insert(s string) {
	c.mu.Lock()
	c.draft.WriteString(s)
	c.mu.Unlock()
}

// Draft returns the current draft text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.String()
}

// Clear empties the draft.
func (c *Composer) Clear() {
	c.mu.Lock()
	c.draft.Reset()
	c.mu.Unlock()
}

// Press feeds one keystroke. It returns the draft and true when the
// stroke submits it; the draft is NOT cleared here — the session clears
// it only once the submit gates pass, so a gated no-op keeps the text.
func (c *Composer) Press(k Key, r rune, shift bool) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch k {
	case KeyEnter:
		if shift {
			c.draft.WriteByte('\n')
			return "", false
		}
		return c.draft.String(), true
	default:
		c.draft.WriteRune(r)
		return "", false
	}
}
