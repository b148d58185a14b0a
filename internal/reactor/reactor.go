// Package reactor turns filesystem change notifications into the minimal
// set of render and copy operations. For each accepted event it classifies
// the changed file, refreshes that file's edges in the dependency graph,
// computes the impacted templates, and dispatches renders.
//
// Events are processed one at a time: the graph is never read or mutated by
// a second event while the first is in flight, and every render triggered
// by an event completes (or is reported failed) before the next event's
// graph update begins. Render dispatch within one event may be parallel.
package reactor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/graph"
	"github.com/stencilhq/stencil/internal/logging"
	"github.com/stencilhq/stencil/internal/sources"
	"github.com/stencilhq/stencil/internal/watcher"
)

// Extractor recomputes the textual references of a template or partial from
// current on-disk content.
type Extractor interface {
	Extract(name string) (graph.Set, error)
}

// Renderer produces the output artifact for one template.
type Renderer interface {
	RenderTemplate(name string) error
}

// Copier replicates one static file into the output tree.
type Copier interface {
	CopyStatic(name string) error
}

// Config wires a Reactor. All collaborators are required except Notify and
// Logger.
type Config struct {
	// SearchPath is the absolute path of the watched root. Event paths
	// are relativized against it.
	SearchPath string
	// Sources classifies changed files.
	Sources *sources.Sources
	// Graph is the fully built dependency graph.
	Graph *graph.Graph
	// Extractor, Renderer and Copier are the external collaborators.
	Extractor Extractor
	Renderer  Renderer
	Copier    Copier
	// Concurrency bounds parallel renders within one event. Values below
	// one mean serial dispatch.
	Concurrency int
	// Notify, when set, fires after an event's renders or copies
	// complete, with the affected output names. Used for live reload.
	Notify func(changed []string)
	// Logger receives per-event progress and failures.
	Logger logging.Logger
}

// Reactor consumes change notifications and keeps the rendered output and
// the dependency graph consistent with the sources.
type Reactor struct {
	searchPath  string
	sources     *sources.Sources
	graph       *graph.Graph
	extractor   Extractor
	renderer    Renderer
	copier      Copier
	concurrency int
	notify      func([]string)
	logger      logging.Logger

	// mu serializes event processing over the graph.
	mu sync.Mutex
}

// New creates a Reactor.
func New(cfg Config) *Reactor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reactor{
		searchPath:  cfg.SearchPath,
		sources:     cfg.Sources,
		graph:       cfg.Graph,
		extractor:   cfg.Extractor,
		renderer:    cfg.Renderer,
		copier:      cfg.Copier,
		concurrency: concurrency,
		notify:      cfg.Notify,
		logger:      logger.WithComponent("reactor"),
	}
}

// Graph exposes the dependency graph, mainly for inspection in tests and
// diagnostics.
func (r *Reactor) Graph() *graph.Graph {
	return r.graph
}

// ShouldHandle reports whether an event warrants processing: only created
// and modified events for an existing regular file under the search root.
// Everything else, including deletions and directory events, is dropped.
func (r *Reactor) ShouldHandle(evType watcher.EventType, absPath string) bool {
	if evType != watcher.EventTypeCreated && evType != watcher.EventTypeModified {
		return false
	}
	if _, ok := r.relativize(absPath); !ok {
		return false
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// relativize converts an absolute event path into the slash-relative vertex
// identifier used everywhere downstream.
func (r *Reactor) relativize(absPath string) (string, bool) {
	rel, err := filepath.Rel(r.searchPath, absPath)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// HandleEvent processes a single notification. A failure is local to this
// event: the graph is left in its prior consistent state on extraction
// errors, and render failures are reported without stopping the session.
func (r *Reactor) HandleEvent(ctx context.Context, ev watcher.ChangeEvent) error {
	if !r.ShouldHandle(ev.Type, ev.Path) {
		r.logger.Debug(ctx, "event dropped", "type", ev.Type.String(), "path", ev.Path)
		return nil
	}
	name, _ := r.relativize(ev.Path)

	r.mu.Lock()
	defer r.mu.Unlock()

	role := r.sources.Classify(name)
	r.logger.Info(ctx, "change detected", "type", ev.Type.String(), "file", name, "role", role.String())

	switch role {
	case sources.RoleIgnored:
		return nil
	case sources.RoleStatic:
		if err := r.copier.CopyStatic(name); err != nil {
			return &stencilerrors.EventError{Path: name, Op: "copy", Err: err}
		}
		r.notifyChanged([]string{name})
		return nil
	}

	// Template, partial or data file: refresh the graph, then render the
	// impact set. Extraction runs before the update so a malformed
	// template cannot leave the graph half-mutated.
	deps, err := r.dependencies(name)
	if err != nil {
		return &stencilerrors.EventError{Path: name, Op: "extract", Err: err}
	}
	r.graph.Update(name, deps)

	impact := r.sources.DependencyTargets(r.graph, name)
	if err := r.renderAll(ctx, impact); err != nil {
		return &stencilerrors.EventError{Path: name, Op: "render", Err: err}
	}
	r.notifyChanged(impact)
	return nil
}

// Handler adapts the reactor to the watcher's handler contract. Event
// failures are logged and the watch session keeps running.
func (r *Reactor) Handler(ctx context.Context) watcher.ChangeHandler {
	return func(events []watcher.ChangeEvent) error {
		for _, ev := range events {
			if err := r.HandleEvent(ctx, ev); err != nil {
				r.logger.Error(ctx, err, "event processing failed", "path", ev.Path)
			}
		}
		return nil
	}
}

// dependencies recomputes a file's dependency set: extracted references
// unioned with declared extra dependencies. Data files have no extraction
// but may still carry declarations.
func (r *Reactor) dependencies(name string) (graph.Set, error) {
	deps, err := r.extractor.Extract(name)
	if err != nil {
		return nil, err
	}
	if deps == nil {
		deps = make(graph.Set)
	}
	for _, extra := range r.sources.ExtraDepsFor(name) {
		deps.Add(extra)
	}
	return deps, nil
}

// renderAll renders every impacted template, in no particular order. Each
// failure is recorded and reported; remaining renders still run. All
// renders complete before renderAll returns, so the next event never races
// a stale graph snapshot.
func (r *Reactor) renderAll(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	collector := stencilerrors.NewErrorCollector()

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(r.concurrency)
	for _, name := range names {
		eg.Go(func() error {
			if err := r.renderer.RenderTemplate(name); err != nil {
				collector.AddRender(name, err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return collector.Err()
}

func (r *Reactor) notifyChanged(names []string) {
	if r.notify == nil || len(names) == 0 {
		return
	}
	r.notify(names)
}
