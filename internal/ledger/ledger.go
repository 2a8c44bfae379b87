// Package ledger keeps an append-only history of what each stage did to each
// artifact. It is informational: stages never read it back, and a failed
// write is logged but never blocks an action.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionValidated Action = "validated"
	ActionRejected  Action = "rejected"
	ActionArchived  Action = "archived"
	ActionCorrupted Action = "corrupted"
	ActionDeleted   Action = "deleted"
	ActionObscured  Action = "obscured"
	ActionDecayed   Action = "decayed"
	ActionExecuted  Action = "executed"
)

// Event is one ledger entry.
type Event struct {
	Artifact string    `json:"artifact"`
	Stage    string    `json:"stage"`
	Action   Action    `json:"action"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Recorder accepts lifecycle events.
type Recorder interface {
	Record(Event) error
}

type discard struct{}

func (discard) Record(Event) error { return nil }

// Discard drops every event.
var Discard Recorder = discard{}

const keyPrefix = "artifact/"

// Ledger is a badger-backed Recorder.
type Ledger struct {
	db *badger.DB
}

// Options configures Open.
type Options struct {
	// Dir holds the database files. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

// Open opens or creates a ledger.
func Open(opts Options) (*Ledger, error) {
	var bopts badger.Options
	switch {
	case opts.InMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case opts.Dir == "":
		return nil, errors.New("ledger: directory is required")
	default:
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: ensure %s: %w", opts.Dir, err)
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	if opts.Logger != nil {
		bopts = bopts.WithLogger(badgerLogger{logger: opts.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends e. A zero timestamp is replaced with the current time.
func (l *Ledger) Record(e Event) error {
	if e.Artifact == "" {
		return errors.New("ledger: artifact is required")
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	key := []byte(fmt.Sprintf("%s%s/%020d/%s", keyPrefix, e.Artifact, e.At.UnixNano(), e.Action))
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", e.Artifact, err)
	}
	return nil
}

// History returns every event for artifact, oldest first.
func (l *Ledger) History(artifact string) ([]Event, error) {
	prefix := []byte(keyPrefix + artifact + "/")
	var events []Event
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: history %s: %w", artifact, err)
	}
	return events, nil
}

// Artifacts lists every artifact with at least one event, sorted by name.
func (l *Ledger) Artifacts() ([]string, error) {
	prefix := []byte(keyPrefix)
	var names []string
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), keyPrefix)
			name, _, _ := strings.Cut(rest, "/")
			if len(names) == 0 || names[len(names)-1] != name {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: list artifacts: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
