// Package records persists the two side channels the orchestrator reads:
// experiment results written by the harness and chaos events written by the
// fault injector. Records are immutable JSON files named after a UUIDv7, so
// the lexicographically greatest file name is the most recent record.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is an experiment outcome.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusSyntaxError   Status = "syntax_error"
	StatusRuntimeError  Status = "runtime_error"
	StatusInternalError Status = "internal_error"
)

// Failed reports whether the status counts against the complexity bias.
func (s Status) Failed() bool {
	return s == StatusSyntaxError || s == StatusRuntimeError
}

// ExperimentResult is the outcome of one sandboxed execution.
type ExperimentResult struct {
	ID        string    `json:"experiment_id"`
	Status    Status    `json:"status"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	Error     string    `json:"error_message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Artifact  string    `json:"tested_file"`
	Sandbox   string    `json:"sandbox_path"`
}

// ChaosKind is the simulated fault dropped into a sandbox.
type ChaosKind string

const (
	ChaosDataCorruption    ChaosKind = "data_corruption_sim"
	ChaosStateReset        ChaosKind = "state_reset_sim"
	ChaosMemoryPressure    ChaosKind = "memory_pressure_sim"
	ChaosTransientFileLoss ChaosKind = "transient_file_loss_sim"
)

// ChaosKinds lists every kind the injector may pick.
var ChaosKinds = []ChaosKind{
	ChaosDataCorruption,
	ChaosStateReset,
	ChaosMemoryPressure,
	ChaosTransientFileLoss,
}

// ChaosEvent records one injected fault.
type ChaosEvent struct {
	ID         string    `json:"event_id"`
	Kind       ChaosKind `json:"chaos_type"`
	Target     string    `json:"target_experiment"`
	TargetPath string    `json:"target_path"`
	Intensity  float64   `json:"intensity"`
	Timestamp  time.Time `json:"timestamp"`
}

// File name prefixes.
const (
	ExperimentPrefix  = "experiment_"
	ChaosPrefix       = "chaos_"
	ChaosMarkerPrefix = "chaos_marker_"
	recordExt         = ".json"
)

// ErrNoRecords is returned when a side channel holds no records yet.
var ErrNoRecords = errors.New("records: none found")

// NewID returns a time-ordered identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ExperimentFile is the result file name for id.
func ExperimentFile(id string) string { return ExperimentPrefix + id + recordExt }

// ChaosFile is the chaos log file name for id.
func ChaosFile(id string) string { return ChaosPrefix + id + recordExt }

// ChaosMarkerFile is the marker dropped inside a sandbox for id.
func ChaosMarkerFile(id string) string { return ChaosMarkerPrefix + id + recordExt }

// WriteJSON writes v as indented JSON into dir/name, creating dir if needed.
func WriteJSON(dir, name string, v any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("records: ensure %s: %w", dir, err)
	}
	return writeJSON(dir, name, v)
}

// WriteMarker drops the chaos marker for e into an existing sandbox. A
// missing sandbox is reported as fs.ErrNotExist and never recreated.
func WriteMarker(sandbox string, e ChaosEvent) (string, error) {
	return writeJSON(sandbox, ChaosMarkerFile(e.ID), e)
}

func writeJSON(dir, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("records: encode %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("records: write %s: %w", path, err)
	}
	return path, nil
}

// WriteResult persists r into dir.
func WriteResult(dir string, r ExperimentResult) (string, error) {
	return WriteJSON(dir, ExperimentFile(r.ID), r)
}

// WriteChaos persists e into dir.
func WriteChaos(dir string, e ChaosEvent) (string, error) {
	return WriteJSON(dir, ChaosFile(e.ID), e)
}

// LatestResult returns the most recent experiment result in dir and its file
// name.
func LatestResult(dir string) (ExperimentResult, string, error) {
	var r ExperimentResult
	name, err := latest(dir, ExperimentPrefix, &r)
	return r, name, err
}

// LatestChaos returns the most recent chaos event in dir and its file name.
func LatestChaos(dir string) (ChaosEvent, string, error) {
	var e ChaosEvent
	name, err := latest(dir, ChaosPrefix, &e)
	return e, name, err
}

// Names lists record files in dir with prefix, oldest first.
func Names(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("records: list %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		if prefix == ChaosPrefix && strings.HasPrefix(name, ChaosMarkerPrefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func latest(dir, prefix string, v any) (string, error) {
	names, err := Names(dir, prefix)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoRecords
	}
	name := names[len(names)-1]
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return name, fmt.Errorf("records: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return name, fmt.Errorf("records: decode %s: %w", name, err)
	}
	return name, nil
}
