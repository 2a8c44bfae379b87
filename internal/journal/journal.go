// Package journal keeps the orchestrator's per-generation record: one text
// line per pulse with the generation, the bias after feedback, and the result
// that drove it.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one generation's line.
type Entry struct {
	At         time.Time
	Generation int
	Bias       float64
	// Feedback is the result status applied this pulse, or "none".
	Feedback   string
	Experiment string
	Chaos      string
}

// String renders the entry as a journal line.
func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s gen=%d bias=%.4f feedback=%s",
		e.At.UTC().Format(time.RFC3339), e.Generation, e.Bias, orNone(e.Feedback))
	if e.Experiment != "" {
		fmt.Fprintf(&b, " experiment=%s", e.Experiment)
	}
	if e.Chaos != "" {
		fmt.Fprintf(&b, " chaos=%s", e.Chaos)
	}
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

// Journal appends entries to a plain text file.
type Journal struct {
	path string
	mu   sync.Mutex
}

// New creates a journal writing to path.
func New(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: ensure %s: %w", filepath.Dir(path), err)
	}
	return &Journal{path: path}, nil
}

// Path returns the file backing this journal.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Append writes one entry. A nil journal drops it.
func (j *Journal) Append(e Entry) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(e.String() + "\n"); err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

// Tail returns up to maxLines of the most recent lines and the total line
// count.
func (j *Journal) Tail(maxLines int) ([]string, int) {
	if j == nil || maxLines <= 0 {
		return nil, 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return tailFile(j.path, maxLines)
}

// TailFile reads the last lines of a journal owned by another process.
func TailFile(path string, maxLines int) ([]string, int) {
	if maxLines <= 0 {
		return nil, 0
	}
	return tailFile(path, maxLines)
}

func tailFile(path string, maxLines int) ([]string, int) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}
