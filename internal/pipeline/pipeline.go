// Package pipeline assembles the built-in stages and hands their loops to a
// supervisor.
package pipeline

import (
	"log/slog"

	"github.com/kingrea/The-Spiral/internal/classifier"
	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/corruptor"
	"github.com/kingrea/The-Spiral/internal/decayer"
	"github.com/kingrea/The-Spiral/internal/faults"
	"github.com/kingrea/The-Spiral/internal/harness"
	"github.com/kingrea/The-Spiral/internal/obscurer"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/supervisor"
	"github.com/kingrea/The-Spiral/internal/validator"
)

// Workers lists the supervised stages in flow order. The orchestrator is not
// one of them; it drives the supervisor.
var Workers = config.Stages[:len(config.Stages)-1 : len(config.Stages)-1]

// RegisterBuiltins installs every worker stage factory into reg.
func RegisterBuiltins(reg *stage.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(config.StageValidator, func(env stage.Env) stage.Stage { return validator.New(env) })
	reg.MustRegister(config.StageClassifier, func(env stage.Env) stage.Stage { return classifier.New(env) })
	reg.MustRegister(config.StageCorruptor, func(env stage.Env) stage.Stage { return corruptor.New(env) })
	reg.MustRegister(config.StageObscurer, func(env stage.Env) stage.Stage { return obscurer.New(env) })
	reg.MustRegister(config.StageDecayer, func(env stage.Env) stage.Stage { return decayer.New(env) })
	reg.MustRegister(config.StageHarness, func(env stage.Env) stage.Stage { return harness.New(env) })
	reg.MustRegister(config.StageInjector, func(env stage.Env) stage.Stage { return faults.New(env) })
}

// Builtins returns a registry holding every worker stage.
func Builtins() *stage.Registry {
	reg := stage.NewRegistry()
	RegisterBuiltins(reg)
	return reg
}

// Supervise resolves every stage in reg and registers its runner loop with
// sup under the stage name. Nothing is started.
func Supervise(sup *supervisor.Supervisor, reg *stage.Registry, env stage.Env, loader stage.Loader, logger *slog.Logger) error {
	for _, name := range reg.Names() {
		s, err := reg.Resolve(name, env)
		if err != nil {
			return err
		}
		if err := sup.Register(name, stage.NewRunner(s, loader, logger).Run); err != nil {
			return err
		}
	}
	return nil
}
