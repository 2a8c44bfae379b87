// internal/config/params.go
//
// The parameter set is the single source of truth every stage reads. It is a
// flat YAML document (params.yaml) so operators can edit it by hand; only the
// orchestrator writes it at runtime.

package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Stage names double as the prefix of each stage's pulse interval key.
const (
	StageValidator    = "validator"
	StageClassifier   = "classifier"
	StageCorruptor    = "corruptor"
	StageObscurer     = "obscurer"
	StageDecayer      = "decayer"
	StageHarness      = "harness"
	StageInjector     = "injector"
	StageOrchestrator = "orchestrator"
)

// Stages lists every stage name in the order artifacts flow, orchestrator last.
var Stages = []string{
	StageValidator,
	StageClassifier,
	StageCorruptor,
	StageObscurer,
	StageDecayer,
	StageHarness,
	StageInjector,
	StageOrchestrator,
}

// IsStage reports whether name is a stage with its own pulse interval.
func IsStage(name string) bool {
	for _, s := range Stages {
		if s == name {
			return true
		}
	}
	return false
}

// Params is one snapshot of the parameter store.
type Params struct {
	Generation     int `yaml:"generation" validate:"gte=0"`
	MaxGenerations int `yaml:"max_generations" validate:"gte=0"`

	ValidatorPulseSeconds    float64 `yaml:"validator_pulse_seconds" validate:"gt=0"`
	ClassifierPulseSeconds   float64 `yaml:"classifier_pulse_seconds" validate:"gt=0"`
	CorruptorPulseSeconds    float64 `yaml:"corruptor_pulse_seconds" validate:"gt=0"`
	ObscurerPulseSeconds     float64 `yaml:"obscurer_pulse_seconds" validate:"gt=0"`
	DecayerPulseSeconds      float64 `yaml:"decayer_pulse_seconds" validate:"gt=0"`
	HarnessPulseSeconds      float64 `yaml:"harness_pulse_seconds" validate:"gt=0"`
	InjectorPulseSeconds     float64 `yaml:"injector_pulse_seconds" validate:"gt=0"`
	OrchestratorPulseSeconds float64 `yaml:"orchestrator_pulse_seconds" validate:"gt=0"`

	ComplexityBias    float64 `yaml:"complexity_bias" validate:"gte=0,lte=1"`
	MinComplexityBias float64 `yaml:"min_complexity_bias" validate:"gte=0,lte=1"`
	MaxComplexityBias float64 `yaml:"max_complexity_bias" validate:"gte=0,lte=1,gtefield=MinComplexityBias"`
	BiasFailureStep   float64 `yaml:"bias_failure_step" validate:"gte=0,lte=1"`
	BiasSuccessStep   float64 `yaml:"bias_success_step" validate:"gte=0,lte=1"`

	ChaosIntensity    float64 `yaml:"chaos_intensity" validate:"gte=0,lte=1"`
	MinChaosIntensity float64 `yaml:"min_chaos_intensity" validate:"gte=0,lte=1"`
	MaxChaosIntensity float64 `yaml:"max_chaos_intensity" validate:"gte=0,lte=1,gtefield=MinChaosIntensity"`

	DeletionChance    float64 `yaml:"deletion_chance" validate:"gte=0,lte=1"`
	MinDeletionChance float64 `yaml:"min_deletion_chance" validate:"gte=0,lte=1"`
	MaxDeletionChance float64 `yaml:"max_deletion_chance" validate:"gte=0,lte=1,gtefield=MinDeletionChance"`

	ObscurityChance    float64 `yaml:"obscurity_chance" validate:"gte=0,lte=1"`
	MinObscurityChance float64 `yaml:"min_obscurity_chance" validate:"gte=0,lte=1"`
	MaxObscurityChance float64 `yaml:"max_obscurity_chance" validate:"gte=0,lte=1,gtefield=MinObscurityChance"`
	MinFileAgeSeconds  float64 `yaml:"min_file_age_seconds" validate:"gte=0"`

	DecayWindowSeconds    float64 `yaml:"decay_window_seconds" validate:"gte=0"`
	MinDecayWindowSeconds float64 `yaml:"min_decay_window_seconds" validate:"gte=0"`
	MaxDecayWindowSeconds float64 `yaml:"max_decay_window_seconds" validate:"gte=0,gtefield=MinDecayWindowSeconds"`

	// AdaptiveScaling lets the orchestrator derive the chaos, deletion,
	// obscurity and decay parameters from the complexity bias every pulse.
	AdaptiveScaling bool `yaml:"adaptive_scaling"`

	// SandboxRetentionSeconds bounds how long experiment sandboxes are kept.
	// Zero keeps them forever.
	SandboxRetentionSeconds float64 `yaml:"sandbox_retention_seconds" validate:"gte=0"`

	// LastExperiment names the result file the orchestrator last fed back
	// into the bias, so a result is applied once even across restarts.
	LastExperiment string `yaml:"last_experiment,omitempty"`

	ArtifactExt     string   `yaml:"artifact_ext" validate:"required,startswith=."`
	AllowedPackages []string `yaml:"allowed_packages" validate:"dive,required"`

	Paths Paths `yaml:",inline"`
}

// Paths lists every partition and side-channel location. Relative entries are
// resolved against the directory holding params.yaml.
type Paths struct {
	Raw             string `yaml:"raw_path" validate:"required"`
	Rejected        string `yaml:"rejected_path" validate:"required"`
	Valid           string `yaml:"valid_path" validate:"required"`
	Archive         string `yaml:"archive_path" validate:"required"`
	ArchiveOlympian string `yaml:"archive_olympian_path" validate:"required"`
	ArchiveChthonic string `yaml:"archive_chthonic_path" validate:"required"`
	Graveyard       string `yaml:"graveyard_path" validate:"required"`
	Abyss           string `yaml:"abyss_path" validate:"required"`
	Sandbox         string `yaml:"sandbox_path" validate:"required"`
	Results         string `yaml:"results_path" validate:"required"`
	ChaosLog        string `yaml:"chaos_log_path" validate:"required"`
	LogDir          string `yaml:"log_dir" validate:"required"`
	Journal         string `yaml:"journal_path" validate:"required"`
	Ledger          string `yaml:"ledger_path" validate:"required"`
}

// NamedPath pairs a partition label with its directory.
type NamedPath struct {
	Name string
	Dir  string
}

// Default returns the documented defaults. Readers fall back to these for any
// key missing from params.yaml.
func Default() Params {
	return Params{
		ValidatorPulseSeconds:    1.047,
		ClassifierPulseSeconds:   1.618,
		CorruptorPulseSeconds:    1.618,
		ObscurerPulseSeconds:     0.955,
		DecayerPulseSeconds:      0.618,
		HarnessPulseSeconds:      3.0,
		InjectorPulseSeconds:     2.0,
		OrchestratorPulseSeconds: 2.618,

		ComplexityBias:    0.5,
		MinComplexityBias: 0.1,
		MaxComplexityBias: 0.9,
		BiasFailureStep:   0.05,
		BiasSuccessStep:   0.01,

		ChaosIntensity:    0.001,
		MinChaosIntensity: 0.0001,
		MaxChaosIntensity: 0.1,

		DeletionChance:    0.01,
		MinDeletionChance: 0.001,
		MaxDeletionChance: 0.5,

		ObscurityChance:    0.005,
		MinObscurityChance: 0.0005,
		MaxObscurityChance: 0.1,
		MinFileAgeSeconds:  60,

		DecayWindowSeconds:    3600,
		MinDecayWindowSeconds: 60,
		MaxDecayWindowSeconds: 36000,

		ArtifactExt: ".go",
		AllowedPackages: []string{
			"fmt", "time", "math/rand", "encoding/json",
			"strings", "strconv", "math", "errors", "sort",
		},

		Paths: Paths{
			Raw:             "spiral/raw",
			Rejected:        "spiral/rejected",
			Valid:           "spiral/valid",
			Archive:         "spiral/archive",
			ArchiveOlympian: "spiral/archive/olympian",
			ArchiveChthonic: "spiral/archive/chthonic",
			Graveyard:       "spiral/graveyard",
			Abyss:           "spiral/abyss",
			Sandbox:         "spiral/forge",
			Results:         "spiral/results",
			ChaosLog:        "spiral/chaos",
			LogDir:          "spiral/logs",
			Journal:         "spiral/logs/generations.log",
			Ledger:          "spiral/ledger",
		},
	}
}

// Interval returns the pulse interval configured for a stage. Unknown stages
// get one second.
func (p Params) Interval(stage string) time.Duration {
	var secs float64
	switch stage {
	case StageValidator:
		secs = p.ValidatorPulseSeconds
	case StageClassifier:
		secs = p.ClassifierPulseSeconds
	case StageCorruptor:
		secs = p.CorruptorPulseSeconds
	case StageObscurer:
		secs = p.ObscurerPulseSeconds
	case StageDecayer:
		secs = p.DecayerPulseSeconds
	case StageHarness:
		secs = p.HarnessPulseSeconds
	case StageInjector:
		secs = p.InjectorPulseSeconds
	case StageOrchestrator:
		secs = p.OrchestratorPulseSeconds
	}
	if secs <= 0 {
		return time.Second
	}
	return seconds(secs)
}

// MinFileAge is the obscurer's age gate.
func (p Params) MinFileAge() time.Duration { return seconds(p.MinFileAgeSeconds) }

// DecayWindow is the decayer's age threshold.
func (p Params) DecayWindow() time.Duration { return seconds(p.DecayWindowSeconds) }

// SandboxRetention is zero when sandboxes are kept forever.
func (p Params) SandboxRetention() time.Duration { return seconds(p.SandboxRetentionSeconds) }

// ArchiveDirs lists the three archive partitions, general first.
func (p Params) ArchiveDirs() []string {
	return []string{p.Paths.Archive, p.Paths.ArchiveOlympian, p.Paths.ArchiveChthonic}
}

// Partitions lists every lifecycle partition in flow order.
func (p Params) Partitions() []NamedPath {
	return []NamedPath{
		{Name: "raw", Dir: p.Paths.Raw},
		{Name: "rejected", Dir: p.Paths.Rejected},
		{Name: "valid-output", Dir: p.Paths.Valid},
		{Name: "archive-general", Dir: p.Paths.Archive},
		{Name: "archive-olympian", Dir: p.Paths.ArchiveOlympian},
		{Name: "archive-chthonic", Dir: p.Paths.ArchiveChthonic},
		{Name: "graveyard", Dir: p.Paths.Graveyard},
		{Name: "abyss", Dir: p.Paths.Abyss},
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (p *Paths) fields() []*string {
	return []*string{
		&p.Raw, &p.Rejected, &p.Valid, &p.Archive, &p.ArchiveOlympian,
		&p.ArchiveChthonic, &p.Graveyard, &p.Abyss, &p.Sandbox, &p.Results,
		&p.ChaosLog, &p.LogDir, &p.Journal, &p.Ledger,
	}
}

// resolve makes every relative path absolute under base. Stages depend on
// this because the harness changes the process working directory.
func (p *Paths) resolve(base string) {
	for _, field := range p.fields() {
		if *field == "" || filepath.IsAbs(*field) {
			continue
		}
		*field = filepath.Join(base, *field)
	}
}

// relativeTo rewrites paths under base back to their relative form so a saved
// store stays portable.
func (p *Paths) relativeTo(base string) {
	for _, field := range p.fields() {
		if !filepath.IsAbs(*field) {
			continue
		}
		rel, err := filepath.Rel(base, *field)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		*field = filepath.ToSlash(rel)
	}
}
