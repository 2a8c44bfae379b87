package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/The-Spiral/internal/config"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	sets := keyValueFlag{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the parameter store and partition directories",
		Long: "Create params.yaml with defaults if it is missing, apply any --set overrides, " +
			"and create every partition directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := config.NewStore(opts.paramsPath)
			if err != nil {
				return err
			}
			params, err := store.Load()
			if err != nil {
				return err
			}
			if len(sets) > 0 {
				params, err = applyOverrides(params, sets)
				if err != nil {
					return err
				}
				if err := store.Save(params); err != nil {
					return err
				}
				if params, err = store.Load(); err != nil {
					return err
				}
			}
			if err := config.EnsureDirs(params); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parameter store: %s\n", store.Path())
			for _, np := range params.Partitions() {
				fmt.Fprintf(out, "  %-17s %s\n", np.Name, np.Dir)
			}
			return nil
		},
	}
	cmd.Flags().Var(&sets, "set", "parameter override (key=value, repeatable)")
	return cmd
}

type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

func (kv *keyValueFlag) Type() string { return "key=value" }

// applyOverrides decodes each value as a YAML scalar and layers the result on
// top of p, so overrides use the same keys and types as params.yaml.
func applyOverrides(p config.Params, overrides keyValueFlag) (config.Params, error) {
	raw := make(map[string]any, len(overrides))
	for key, value := range overrides {
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			return p, fmt.Errorf("override %s: %w", key, err)
		}
		raw[key] = v
	}
	known, err := knownKeys()
	if err != nil {
		return p, err
	}
	for key := range raw {
		if !known[key] {
			return p, fmt.Errorf("unknown parameter %q", key)
		}
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return p, fmt.Errorf("encode overrides: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("apply overrides: %w", err)
	}
	if err := config.Validate(p); err != nil {
		return p, err
	}
	return p, nil
}

func knownKeys() (map[string]bool, error) {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return nil, err
	}
	var keys map[string]any
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(keys)+1)
	for key := range keys {
		known[key] = true
	}
	known["last_experiment"] = true
	return known, nil
}
