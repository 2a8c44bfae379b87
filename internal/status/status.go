// Package status gathers a point-in-time view of the pipeline from the
// filesystem: partition sizes, control parameters and the latest records.
// Any process can collect it; nothing here needs the running stages.
package status

import (
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/journal"
	"github.com/kingrea/The-Spiral/internal/partition"
	"github.com/kingrea/The-Spiral/internal/records"
	"github.com/kingrea/The-Spiral/internal/stage"
)

// JournalLines is how much of the generation journal a snapshot carries.
const JournalLines = 10

// PartitionCount is one partition's artifact count.
type PartitionCount struct {
	Name  string `json:"name"`
	Dir   string `json:"dir"`
	Count int    `json:"count"`
	Err   string `json:"error,omitempty"`
}

// Controls are the parameters the orchestrator steers.
type Controls struct {
	ComplexityBias     float64 `json:"complexity_bias"`
	ChaosIntensity     float64 `json:"chaos_intensity"`
	DeletionChance     float64 `json:"deletion_chance"`
	ObscurityChance    float64 `json:"obscurity_chance"`
	DecayWindowSeconds float64 `json:"decay_window_seconds"`
	AdaptiveScaling    bool    `json:"adaptive_scaling"`
}

// Snapshot is the collected view.
type Snapshot struct {
	CollectedAt    time.Time                 `json:"collected_at"`
	Generation     int                       `json:"generation"`
	MaxGenerations int                       `json:"max_generations"`
	Controls       Controls                  `json:"controls"`
	Partitions     []PartitionCount          `json:"partitions"`
	Sandboxes      int                       `json:"sandboxes"`
	Results        int                       `json:"results"`
	ChaosEvents    int                       `json:"chaos_events"`
	LatestResult   *records.ExperimentResult `json:"latest_result,omitempty"`
	LatestChaos    *records.ChaosEvent       `json:"latest_chaos,omitempty"`
	Journal        []string                  `json:"journal,omitempty"`
}

// Collect reads everything a snapshot needs. Unreadable pieces are left empty
// or reported per partition rather than failing the whole view.
func Collect(p config.Params, now time.Time) Snapshot {
	snap := Snapshot{
		CollectedAt:    now.UTC(),
		Generation:     p.Generation,
		MaxGenerations: p.MaxGenerations,
		Controls: Controls{
			ComplexityBias:     p.ComplexityBias,
			ChaosIntensity:     p.ChaosIntensity,
			DeletionChance:     p.DeletionChance,
			ObscurityChance:    p.ObscurityChance,
			DecayWindowSeconds: p.DecayWindowSeconds,
			AdaptiveScaling:    p.AdaptiveScaling,
		},
	}
	for _, np := range p.Partitions() {
		pc := PartitionCount{Name: np.Name, Dir: np.Dir}
		n, err := partition.New(np.Name, np.Dir, p.ArtifactExt).Count()
		if err != nil {
			pc.Err = err.Error()
		}
		pc.Count = n
		snap.Partitions = append(snap.Partitions, pc)
	}
	if dirs, err := partition.Subdirs(p.Paths.Sandbox, records.ExperimentPrefix); err == nil {
		snap.Sandboxes = len(dirs)
	}
	if names, err := records.Names(p.Paths.Results, records.ExperimentPrefix); err == nil {
		snap.Results = len(names)
	}
	if names, err := records.Names(p.Paths.ChaosLog, records.ChaosPrefix); err == nil {
		snap.ChaosEvents = len(names)
	}
	if r, _, err := records.LatestResult(p.Paths.Results); err == nil {
		snap.LatestResult = &r
	}
	if e, _, err := records.LatestChaos(p.Paths.ChaosLog); err == nil {
		snap.LatestChaos = &e
	}
	snap.Journal, _ = journal.TailFile(p.Paths.Journal, JournalLines)
	return snap
}

// Count returns the named partition's count, or -1 when absent.
func (s Snapshot) Count(name string) int {
	for _, pc := range s.Partitions {
		if pc.Name == name {
			return pc.Count
		}
	}
	return -1
}

// Load collects a snapshot straight from a parameter store.
func Load(loader stage.Loader, now time.Time) (Snapshot, error) {
	p, err := loader.Load()
	if err != nil {
		return Snapshot{}, err
	}
	return Collect(p, now), nil
}
