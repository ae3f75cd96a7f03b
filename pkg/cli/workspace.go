package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/devicelab-dev/pageflow/pkg/config"
	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/fixture"
	"github.com/devicelab-dev/pageflow/pkg/flow"
	"github.com/devicelab-dev/pageflow/pkg/validator"
)

// errNoFlows is returned when selection leaves nothing to run.
var errNoFlows = errors.New("no flows to run")

// workspace is a loaded configuration with its validated flows.
type workspace struct {
	cfg      *config.Config
	fixtures fixture.Set
	result   *validator.Result
	useCases bool // run the configured cases rather than one case per flow
}

// loadConfig reads a config file, or config.yaml from a directory.
func loadConfig(path string) (*config.Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if info.IsDir() {
		return config.LoadFromDir(path)
	}
	return config.Load(path)
}

// loadWorkspace loads fixtures and validates flows. Explicit paths replace
// the configured flow globs and the configured cases.
func loadWorkspace(cfg *config.Config, paths []string) (*workspace, error) {
	fixtures, err := cfg.LoadFixtures()
	if err != nil {
		return nil, err
	}

	ws := &workspace{
		cfg:      cfg,
		fixtures: fixtures,
		useCases: len(paths) == 0 && len(cfg.Cases) > 0,
	}

	v := validator.New(cfg.IncludeTags, cfg.ExcludeTags)
	if !ws.useCases {
		// Without cases every flow runs on the workspace fixtures alone.
		v.WithFixtures(fixtures)
	}

	if len(paths) == 0 {
		dir := cfg.Dir()
		if dir == "" {
			dir = "."
		}
		ws.result = v.ValidateGlobs(dir, cfg.Flows)
	} else {
		ws.result = &validator.Result{}
		for _, p := range paths {
			r := v.Validate(p)
			ws.result.Files = append(ws.result.Files, r.Files...)
			ws.result.Flows = append(ws.result.Flows, r.Flows...)
			ws.result.Errors = append(ws.result.Errors, r.Errors...)
		}
	}

	if ws.useCases {
		validator.ValidateCases(cfg.Cases, ws.result, fixtures)
	}
	return ws, nil
}

// cases builds the executor cases to run. A non-empty filter keeps only the
// named cases; naming an unknown case is an error.
func (ws *workspace) cases(filter []string) ([]executor.Case, error) {
	var out []executor.Case
	known := make(map[string]bool)

	if ws.useCases {
		for _, c := range ws.cfg.Cases {
			known[c.Name] = true
			if len(filter) > 0 && !slices.Contains(filter, c.Name) {
				continue
			}
			flows := make([]*flow.Flow, 0, len(c.Flows))
			for _, ref := range c.Flows {
				f := ws.result.Lookup(ref)
				if f == nil {
					return nil, fmt.Errorf("case %s: unknown flow %q", c.Name, ref)
				}
				flows = append(flows, f)
			}
			out = append(out, executor.Case{
				Name:     c.Name,
				Start:    c.Start,
				Flows:    flows,
				Fixtures: c.Fixtures,
			})
		}
	} else {
		for _, f := range ws.result.Flows {
			known[f.Name()] = true
			if len(filter) > 0 && !slices.Contains(filter, f.Name()) {
				continue
			}
			out = append(out, executor.Case{Name: f.Name(), Flows: []*flow.Flow{f}})
		}
	}

	for _, name := range filter {
		if !known[name] {
			return nil, fmt.Errorf("unknown case %q", name)
		}
	}
	if len(out) == 0 {
		return nil, errNoFlows
	}
	return out, nil
}

// sessionOptions maps the configuration onto the options every session
// starts from.
func (ws *workspace) sessionOptions() executor.Options {
	t := ws.cfg.Timeouts
	return executor.Options{
		BaseURL:           ws.cfg.BaseURL,
		ResolveTimeout:    t.Resolve.D(),
		ActionTimeout:     t.Action.D(),
		GateTimeout:       t.Gate.D(),
		NavigationTimeout: t.Navigation.D(),
		PollInterval:      t.Poll.D(),
		FrameInterval:     t.Frame.D(),
		Fixtures:          ws.fixtures,
		Variables:         ws.cfg.Env,
		ImportEnv:         true,
	}
}
