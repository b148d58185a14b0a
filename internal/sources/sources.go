// Package sources classifies the files of a site into roles and answers
// which templates a changed file affects. Classification is a pure function
// of the slash-separated path relative to the search root and the two
// configured prefix lists; nothing here is cached or stateful.
package sources

import (
	"strings"

	"github.com/stencilhq/stencil/internal/graph"
)

// Role is the classification of a source file. Every path has exactly one
// role, decided by precedence: partial > ignored > static > data > template.
type Role int

const (
	RoleTemplate Role = iota
	RolePartial
	RoleIgnored
	RoleStatic
	RoleData
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleTemplate:
		return "template"
	case RolePartial:
		return "partial"
	case RoleIgnored:
		return "ignored"
	case RoleStatic:
		return "static"
	case RoleData:
		return "data"
	default:
		return "unknown"
	}
}

// Sources holds the classification configuration. All paths, including the
// prefix lists, are slash-separated and relative to the search root. The
// configuration is supplied once at startup and treated as immutable.
type Sources struct {
	staticPaths []string
	dataPaths   []string
	extraDeps   map[string][]string
}

// New creates a Sources classifier. extraDeps maps a template or partial to
// additional dependencies (typically data files) that textual extraction
// cannot see; it may be nil.
func New(staticPaths, dataPaths []string, extraDeps map[string][]string) *Sources {
	return &Sources{
		staticPaths: staticPaths,
		dataPaths:   dataPaths,
		extraDeps:   extraDeps,
	}
}

// IsPartial reports whether any path segment is prefixed with an
// underscore. Partials are never rendered directly but other templates
// build on them.
func (s *Sources) IsPartial(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, "_") {
			return true
		}
	}
	return false
}

// IsIgnored reports whether any path segment is prefixed with a dot.
// Ignored files are neither rendered nor tracked.
func (s *Sources) IsIgnored(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// IsStatic reports whether the path sits under one of the configured static
// prefixes. Static files are copied to the output verbatim, never parsed.
func (s *Sources) IsStatic(name string) bool {
	for _, prefix := range s.staticPaths {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// IsData reports whether the path sits under one of the configured data
// prefixes. Data files feed render contexts and are tracked for dependency
// purposes only.
func (s *Sources) IsData(name string) bool {
	for _, prefix := range s.dataPaths {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// IsTemplate reports whether the path is a directly rendered template. It
// is the fallback role: not partial, not ignored, not static, not data.
func (s *Sources) IsTemplate(name string) bool {
	if s.IsPartial(name) {
		return false
	}
	if s.IsIgnored(name) {
		return false
	}
	if s.IsStatic(name) {
		return false
	}
	if s.IsData(name) {
		return false
	}
	return true
}

// IsSource reports whether the path goes through the template engine, i.e.
// it is a partial or a template. Only sources have extracted references.
func (s *Sources) IsSource(name string) bool {
	return s.IsPartial(name) || s.IsTemplate(name)
}

// Classify returns the single role of a path. The precedence order must not
// be reordered: a partial under a data prefix is a partial, never data.
func (s *Sources) Classify(name string) Role {
	switch {
	case s.IsPartial(name):
		return RolePartial
	case s.IsIgnored(name):
		return RoleIgnored
	case s.IsStatic(name):
		return RoleStatic
	case s.IsData(name):
		return RoleData
	default:
		return RoleTemplate
	}
}

// ExtraDepsFor returns the explicitly declared extra dependencies of name.
func (s *Sources) ExtraDepsFor(name string) []string {
	if s.extraDeps == nil {
		return nil
	}
	return s.extraDeps[name]
}

// DependencyTargets returns the files that must be re-rendered (or, for a
// static file, re-copied) after name changed: the file itself for templates
// and statics, the template descendants for partials and data files, and
// nothing for ignored files.
func (s *Sources) DependencyTargets(g *graph.Graph, name string) []string {
	switch s.Classify(name) {
	case RoleTemplate, RoleStatic:
		return []string{name}
	case RolePartial, RoleData:
		var targets []string
		for v := range g.Descendants(name) {
			if s.IsTemplate(v) {
				targets = append(targets, v)
			}
		}
		return targets
	default:
		return nil
	}
}

// TemplateNames filters a file listing down to directly rendered templates.
func (s *Sources) TemplateNames(names []string) []string {
	return filter(names, s.IsTemplate)
}

// StaticNames filters a file listing down to static files.
func (s *Sources) StaticNames(names []string) []string {
	return filter(names, s.IsStatic)
}

// DataNames filters a file listing down to data files.
func (s *Sources) DataNames(names []string) []string {
	return filter(names, s.IsData)
}

// SourceNames filters a file listing down to templates and partials.
func (s *Sources) SourceNames(names []string) []string {
	return filter(names, s.IsSource)
}

func filter(names []string, keep func(string) bool) []string {
	var out []string
	for _, name := range names {
		if keep(name) {
			out = append(out, name)
		}
	}
	return out
}
