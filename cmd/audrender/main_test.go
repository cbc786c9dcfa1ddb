// SPDX-License-Identifier: EPL-2.0

package main

import (
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/ik5/audrender/config"
)

func TestHelpDefaults(t *testing.T) {
	t.Parallel()

	vars := helpDefaults(config.Defaults())
	want := map[string]string{
		"defaultOutput": "out.wav",
		"defaultBuffer": "250ms",
		"defaultTick":   "10ms",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("%s = %q, want %q", k, vars[k], v)
		}
	}
}

func TestPlayHelp_ShowsConfigDefaults(t *testing.T) {
	t.Parallel()

	cli := CLI{}
	parser, err := kong.New(&cli, kong.Name("audrender"), helpDefaults(config.Defaults()))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}

	help := map[string]string{}
	for _, cmd := range parser.Model.Children {
		if cmd.Name != "play" {
			continue
		}
		for _, f := range cmd.Flags {
			help[f.Name] = f.Help
		}
	}
	want := map[string]string{
		"output": "(default: out.wav)",
		"buffer": "(default: 250ms)",
		"tick":   "(default: 10ms)",
	}
	for name, s := range want {
		if !strings.Contains(help[name], s) {
			t.Errorf("--%s help = %q, want it to contain %q", name, help[name], s)
		}
	}
}
