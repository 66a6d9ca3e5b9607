package main

import (
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/library-checker-project/judge-executor/internal/sandbox"
)

// fileConfig mirrors the subset of sandbox.Config that can be supplied
// via --config, following the teacher's convention of a thin YAML
// struct decoded straight off the wire rather than a generic map.
type fileConfig struct {
	Cwd     string   `yaml:"cwd"`
	Overlay bool     `yaml:"overlay"`
	TL      *float64 `yaml:"tl"`
	Result  string   `yaml:"result"`
}

// applyConfigFile loads path as YAML and fills in any field of cfg
// whose corresponding flag the user did not pass explicitly on the
// command line. Flags always win over the config file.
func applyConfigFile(path string, cfg *sandbox.Config, flags *pflag.FlagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if !flags.Changed("cwd") && fc.Cwd != "" {
		cfg.Workdir = fc.Cwd
	}

	if !flags.Changed("overlay") {
		cfg.Overlay = fc.Overlay
	}

	if !flags.Changed("tl") && fc.TL != nil {
		cfg.TimeLimit = *fc.TL
		cfg.TimeLimitSet = true
	}

	if !flags.Changed("result") && fc.Result != "" {
		cfg.ResultPath = fc.Result
	}

	return nil
}
