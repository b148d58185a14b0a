// Package scanner performs the one-time full scan that seeds the dependency
// graph before any notification is processed: it enumerates every file
// under the search root, classifies it, extracts references for templates
// and partials, and hands the complete forward-edge mapping to the graph.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/stencilhq/stencil/internal/graph"
	"github.com/stencilhq/stencil/internal/logging"
	"github.com/stencilhq/stencil/internal/sources"
)

// Extractor returns the set of files a template or partial textually
// references, reading current on-disk content.
type Extractor interface {
	Extract(name string) (graph.Set, error)
}

// SiteScanner builds the initial dependency graph of a site.
type SiteScanner struct {
	root      string
	sources   *sources.Sources
	extractor Extractor
	logger    logging.Logger
}

// New creates a scanner over the given search root.
func New(root string, src *sources.Sources, extractor Extractor, logger logging.Logger) *SiteScanner {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &SiteScanner{
		root:      root,
		sources:   src,
		extractor: extractor,
		logger:    logger.WithComponent("scanner"),
	}
}

// ListFiles returns the slash-relative paths of every regular file under
// the search root.
func (s *SiteScanner) ListFiles() ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.root, err)
	}
	return names, nil
}

// Dependencies recomputes the full dependency set of one file: extracted
// references unioned with its declared extra dependencies. A non-nil known
// set restricts extracted references to names with a backing file; a
// {{template}} action can invoke a name another file {{define}}s, which is
// not a file dependency. Declared dependencies are never filtered, so a
// declaration naming a missing file still fails graph construction.
func (s *SiteScanner) Dependencies(name string, known graph.Set) (graph.Set, error) {
	refs, err := s.extractor.Extract(name)
	if err != nil {
		return nil, err
	}
	deps := make(graph.Set, len(refs))
	for ref := range refs {
		if known == nil || known.Contains(ref) {
			deps.Add(ref)
		}
	}
	for _, extra := range s.sources.ExtraDepsFor(name) {
		deps.Add(extra)
	}
	return deps, nil
}

// BuildGraph scans the whole site and constructs the dependency graph.
// Every template, partial and data file becomes a vertex; templates and
// partials get their extracted and declared edges. The build is blocking
// and runs to completion before the reactor consumes any notification.
func (s *SiteScanner) BuildGraph(ctx context.Context) (*graph.Graph, error) {
	files, err := s.ListFiles()
	if err != nil {
		return nil, err
	}

	known := graph.NewSet(files...)
	parents := make(map[string]graph.Set)
	for _, name := range s.sources.DataNames(files) {
		parents[name] = make(graph.Set)
	}
	for _, name := range s.sources.SourceNames(files) {
		deps, err := s.Dependencies(name, known)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", name, err)
		}
		parents[name] = deps
	}

	g, err := graph.FromParents(parents)
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}
	s.logger.Info(ctx, "dependency graph built", "vertices", g.Len(), "files", len(files))
	return g, nil
}
