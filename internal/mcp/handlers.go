package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/constants"
	"github.com/nvandessel/coherence/internal/pathutil"
	"github.com/nvandessel/coherence/internal/ratelimit"
	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/sanitize"
	"github.com/nvandessel/coherence/internal/scenario"
	"github.com/nvandessel/coherence/internal/scene"
	"github.com/nvandessel/coherence/internal/simulation"
	"github.com/nvandessel/coherence/internal/store"
	"github.com/nvandessel/coherence/internal/visualization"
	"gopkg.in/yaml.v3"
)

const scenarioURIPrefix = "coherence://scenarios/"

// registerTools registers all coherence tools with the MCP server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "coherence_score",
		Description: "Score a scene: per-distinction relation coherence and the scene mean",
	}, s.handleCoherenceScore)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "coherence_simulate",
		Description: "Run the seeded expand/contract/diversify dynamics loop and return the step history",
	}, s.handleCoherenceSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "coherence_resolve",
		Description: "Evaluate repair strategies for a scenario's conflict and return the ranked candidate table",
	}, s.handleCoherenceResolve)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "coherence_graph",
		Description: "Render a scene as a graph (json or Graphviz dot) with aspect-coloured edges",
	}, s.handleCoherenceGraph)

	return nil
}

// registerResources exposes the built-in scenarios as YAML resources.
func (s *Server) registerResources() error {
	s.server.AddResource(&sdk.Resource{
		URI:         scenarioURIPrefix,
		Name:        "coherence-scenarios",
		Description: "Names of the built-in scenarios.",
		MIMEType:    "text/plain",
	}, s.handleScenarioIndexResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: scenarioURIPrefix + "{name}",
		Name:        "coherence-scenario",
		Description: "A built-in scenario file: entities, aspects, seed distinctions, and any conflict.",
		MIMEType:    "application/yaml",
	}, s.handleScenarioResource)

	return nil
}

func (s *Server) handleScenarioIndexResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      scenarioURIPrefix,
			MIMEType: "text/plain",
			Text:     strings.Join(scenario.Names(), "\n") + "\n",
		}},
	}, nil
}

func (s *Server) handleScenarioResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	name, ok := strings.CutPrefix(uri, scenarioURIPrefix)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}

	sc, err := scenario.Builtin(name)
	if err != nil {
		return nil, fmt.Errorf("scenario not found: %s", name)
	}
	data, err := yaml.Marshal(sc.File())
	if err != nil {
		return nil, fmt.Errorf("encoding scenario: %w", err)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      uri,
			MIMEType: "application/yaml",
			Text:     string(data),
		}},
	}, nil
}

// handleCoherenceScore implements the coherence_score tool.
func (s *Server) handleCoherenceScore(ctx context.Context, req *sdk.CallToolRequest, args CoherenceScoreInput) (_ *sdk.CallToolResult, _ CoherenceScoreOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("coherence_score", start, retErr, sanitizeToolParams(map[string]any{
			"scenario": args.Scenario, "scene": args.Scene != nil, "weight": args.Weight,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "coherence_score", 1); err != nil {
		return nil, CoherenceScoreOutput{}, err
	}

	sc, err := s.loadScenario(args.Scenario, args.Scene)
	if err != nil {
		return nil, CoherenceScoreOutput{}, err
	}
	scorer, err := s.scorer(args.Weight)
	if err != nil {
		return nil, CoherenceScoreOutput{}, err
	}

	scores, mean := scorer.Breakdown(sc.Scene)
	return nil, CoherenceScoreOutput{
		Scenario:     sc.Name,
		Coherence:    mean,
		Distinctions: len(sc.Scene),
		Entities:     len(simulation.SeedEntities(sc.Scene, sc.Entities)),
		Scores:       scores,
	}, nil
}

// handleCoherenceSimulate implements the coherence_simulate tool.
func (s *Server) handleCoherenceSimulate(ctx context.Context, req *sdk.CallToolRequest, args CoherenceSimulateInput) (_ *sdk.CallToolResult, _ CoherenceSimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]any{
			"scenario": args.Scenario, "scene": args.Scene != nil, "steps": args.Steps,
			"weight": args.Weight, "record": args.Record,
		}
		if args.Seed != nil {
			params["seed"] = *args.Seed
		}
		s.auditTool("coherence_simulate", start, retErr, sanitizeToolParams(params))
	}()

	cfg := s.settings.SimulationConfig()
	if args.Steps != 0 {
		cfg.Steps = args.Steps
	}
	if cfg.Steps < 1 || cfg.Steps > constants.MaxSteps {
		return nil, CoherenceSimulateOutput{}, fmt.Errorf("steps must be between 1 and %d, got %d", constants.MaxSteps, cfg.Steps)
	}
	if err := ratelimit.CheckLimit(s.toolLimiters, "coherence_simulate", ratelimit.SimulationCost(cfg.Steps)); err != nil {
		return nil, CoherenceSimulateOutput{}, err
	}

	seed := s.settings.Dynamics.Seed
	if args.Seed != nil {
		seed = *args.Seed
	}

	sc, err := s.loadScenario(args.Scenario, args.Scene)
	if err != nil {
		return nil, CoherenceSimulateOutput{}, err
	}
	scorer, err := s.scorer(args.Weight)
	if err != nil {
		return nil, CoherenceSimulateOutput{}, err
	}

	initial := sc.State()
	var sinks []simulation.HistorySink
	var run *store.Run
	if args.Record {
		run, err = s.beginRun(ctx, store.RunInfo{
			Kind:     store.KindSimulate,
			Scenario: sc.Name,
			Seed:     seed,
			Config:   cfg,
			Scene:    initial.Scene,
		})
		if err != nil {
			return nil, CoherenceSimulateOutput{}, err
		}
		sinks = append(sinks, run)
	}

	loop := simulation.NewLoop(cfg, scorer, simulation.NewRand(seed)).
		WithLogger(s.logger).
		WithDecisionLogger(s.decisions)
	result, err := loop.Run(ctx, initial, sinks...)
	if err != nil {
		return nil, CoherenceSimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	final := result.Final
	finalCoherence := scorer.SceneCoherence(final.Scene)
	out := CoherenceSimulateOutput{
		Scenario:       sc.Name,
		Seed:           seed,
		Steps:          cfg.Steps,
		History:        result.History,
		FinalScene:     final.Scene,
		FinalCoherence: finalCoherence,
		FinalEntities:  final.Entities.Len(),
		Actions:        make(map[string]int),
	}
	for action, n := range result.ActionCounts() {
		out.Actions[action.String()] = n
	}

	if run != nil {
		if err := run.Finish(ctx, final.Scene, finalCoherence); err != nil {
			return nil, CoherenceSimulateOutput{}, fmt.Errorf("recording run: %w", err)
		}
		out.RunID = run.ID
	}
	return nil, out, nil
}

// handleCoherenceResolve implements the coherence_resolve tool.
func (s *Server) handleCoherenceResolve(ctx context.Context, req *sdk.CallToolRequest, args CoherenceResolveInput) (_ *sdk.CallToolResult, _ CoherenceResolveOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("coherence_resolve", start, retErr, sanitizeToolParams(map[string]any{
			"scenario": args.Scenario, "scene": args.Scene != nil, "weight": args.Weight, "record": args.Record,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "coherence_resolve", 1); err != nil {
		return nil, CoherenceResolveOutput{}, err
	}

	sc, err := s.loadScenario(args.Scenario, args.Scene)
	if err != nil {
		return nil, CoherenceResolveOutput{}, err
	}
	problem, err := sc.Problem()
	if err != nil {
		return nil, CoherenceResolveOutput{}, err
	}
	scorer, err := s.scorer(args.Weight)
	if err != nil {
		return nil, CoherenceResolveOutput{}, err
	}

	selector := resolution.NewSelector(s.settings.ResolutionConfig(), scorer).
		WithLogger(s.logger).
		WithDecisionLogger(s.decisions)
	result, err := selector.Select(problem)
	if err != nil {
		return nil, CoherenceResolveOutput{}, err
	}

	out := CoherenceResolveOutput{
		Scenario:   sc.Name,
		Conflict:   result.Conflict,
		Baseline:   result.Baseline,
		Retained:   len(result.Retained),
		Candidates: result.Candidates,
	}
	if len(result.Candidates) > 0 {
		best := result.Best()
		out.Preferred = &best
	}

	if args.Record {
		run, err := s.beginRun(ctx, store.RunInfo{
			Kind:     store.KindResolve,
			Scenario: sc.Name,
			Config:   s.settings.ResolutionConfig(),
			Scene:    problem.Scene,
		})
		if err != nil {
			return nil, CoherenceResolveOutput{}, err
		}
		if err := run.RecordResolution(ctx, result); err != nil {
			return nil, CoherenceResolveOutput{}, fmt.Errorf("recording run: %w", err)
		}
		out.RunID = run.ID
	}
	return nil, out, nil
}

// handleCoherenceGraph implements the coherence_graph tool.
func (s *Server) handleCoherenceGraph(ctx context.Context, req *sdk.CallToolRequest, args CoherenceGraphInput) (_ *sdk.CallToolResult, _ CoherenceGraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("coherence_graph", start, retErr, sanitizeToolParams(map[string]any{
			"scenario": args.Scenario, "scene": args.Scene != nil, "format": args.Format,
			"conflict": args.Conflict, "title": args.Title, "weight": args.Weight,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "coherence_graph", 1); err != nil {
		return nil, CoherenceGraphOutput{}, err
	}

	format := visualization.FormatJSON
	if args.Format != "" {
		f, err := visualization.ParseFormat(args.Format)
		if err != nil {
			return nil, CoherenceGraphOutput{}, err
		}
		format = f
	}

	sc, err := s.loadScenario(args.Scenario, args.Scene)
	if err != nil {
		return nil, CoherenceGraphOutput{}, err
	}
	scorer, err := s.scorer(args.Weight)
	if err != nil {
		return nil, CoherenceGraphOutput{}, err
	}

	opts := visualization.Options{
		Title:    sanitize.Label(args.Title),
		Conflict: scene.Aspect(sanitize.Label(args.Conflict)),
		Weight:   scorer.Weight(),
	}
	if opts.Title == "" {
		opts.Title = sc.Name
	}
	if opts.Conflict == "" && sc.Conflict != nil {
		opts.Conflict = sc.Conflict.Aspect
	}

	out := CoherenceGraphOutput{
		Format:    string(format),
		NodeCount: len(sc.Scene.Entities()),
		EdgeCount: len(sc.Scene),
		Coherence: scorer.SceneCoherence(sc.Scene),
	}
	switch format {
	case visualization.FormatDOT:
		out.Graph = visualization.RenderDOT(sc.Scene, opts)
	default:
		out.Graph = visualization.RenderJSON(sc.Scene, opts)
	}
	return nil, out, nil
}

// loadScenario resolves a tool's scene argument: an inline scenario, a
// built-in name, or a YAML file inside the allowed scenario directories.
func (s *Server) loadScenario(name string, inline *scenario.File) (*scenario.Scenario, error) {
	switch {
	case inline != nil && name != "":
		return nil, errors.New("provide either scenario or scene, not both")
	case inline != nil:
		return scenario.FromFile(cleanFile(*inline))
	case name == "":
		return nil, errors.New("scenario or scene is required")
	}

	if sc, err := scenario.Builtin(name); err == nil {
		return sc, nil
	}
	if !filepath.IsAbs(name) && s.root != "" {
		name = filepath.Join(s.root, name)
	}
	path, err := pathutil.ScenarioPath(name, s.scenarioDirs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v (built-ins: %s)", scenario.ErrUnknownScenario, err, strings.Join(scenario.Names(), ", "))
	}
	return scenario.Load(path)
}

// scorer returns a scorer at the configured weight, or at weight when it is
// non-zero.
func (s *Server) scorer(weight float64) (*coherence.Scorer, error) {
	cfg := s.settings.ScorerConfig()
	if weight != 0 {
		if weight < 0 {
			return nil, fmt.Errorf("weight must be positive, got %g", weight)
		}
		cfg.Weight = weight
	}
	return coherence.NewScorer(cfg), nil
}

func (s *Server) beginRun(ctx context.Context, info store.RunInfo) (*store.Run, error) {
	runs, err := s.runStore()
	if err != nil {
		return nil, err
	}
	run, err := runs.BeginRun(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return run, nil
}

// cleanFile sanitizes every client-supplied label of an inline scenario.
func cleanFile(f scenario.File) scenario.File {
	out := scenario.File{
		Name:         sanitize.Label(f.Name),
		Description:  sanitize.Description(f.Description),
		Entities:     sanitize.Labels(f.Entities),
		Aspects:      sanitize.Labels(f.Aspects),
		Distinctions: make([]scenario.DistinctionSpec, 0, len(f.Distinctions)),
		Anchors: resolution.Anchors{
			RewardSource: scene.Entity(sanitize.Label(string(f.Anchors.RewardSource))),
			RewardTarget: scene.Entity(sanitize.Label(string(f.Anchors.RewardTarget))),
			Priority:     scene.Entity(sanitize.Label(string(f.Anchors.Priority))),
			Value:        scene.Entity(sanitize.Label(string(f.Anchors.Value))),
		},
	}
	if out.Name == "" {
		out.Name = "inline"
	}
	for _, d := range f.Distinctions {
		out.Distinctions = append(out.Distinctions, cleanDistinction(d))
	}
	if f.Conflict != nil {
		c := cleanDistinction(*f.Conflict)
		out.Conflict = &c
	}
	if f.Families != nil {
		out.Families = make(map[string]string, len(f.Families))
		for aspect, family := range f.Families {
			out.Families[sanitize.Label(aspect)] = strings.TrimSpace(family)
		}
	}
	return out
}

func cleanDistinction(d scenario.DistinctionSpec) scenario.DistinctionSpec {
	return scenario.DistinctionSpec{
		Source: sanitize.Label(d.Source),
		Target: sanitize.Label(d.Target),
		Aspect: sanitize.Label(d.Aspect),
	}
}
