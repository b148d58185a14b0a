// Package renderer implements the Site, the rendering side of stencil: it
// renders template files from the search root into the output directory,
// copies static files verbatim, and assembles render contexts from data
// files and configured context sources.
//
// Rendering builds on html/template. Every template and partial is parsed
// into one template set under its slash-relative path, so a template
// includes a partial with {{template "_base.html" .}} using the same name
// the dependency graph tracks it by.
package renderer

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/logging"
	"github.com/stencilhq/stencil/internal/sources"
)

// ContextFunc builds part of the render context for a template name.
type ContextFunc func(name string) (map[string]interface{}, error)

// ContextSource pairs a name pattern with a context builder. Sources are
// evaluated in order; by default the first match wins, with MergeContexts
// every match contributes, later matches overriding earlier keys.
type ContextSource struct {
	Pattern *regexp.Regexp
	Build   ContextFunc
}

// RuleFunc renders a template in place of the default engine.
type RuleFunc func(site *Site, name string, ctx map[string]interface{}) error

// Rule pairs a name pattern with a rendering override. Rules are evaluated
// in order and the first match is used.
type Rule struct {
	Pattern *regexp.Regexp
	Render  RuleFunc
}

// Options configures a Site.
type Options struct {
	// SearchPath is the directory holding templates, partials, data and
	// static files.
	SearchPath string
	// OutPath is the directory rendered pages and copied statics land in.
	OutPath string
	// Encoding names the source and output text encoding. Defaults to
	// "utf-8". Resolved through the WHATWG encoding index.
	Encoding string
	// Sources classifies files and supplies extra dependency declarations.
	Sources *sources.Sources
	// Contexts are the ordered context sources.
	Contexts []ContextSource
	// Rules are the ordered rendering overrides.
	Rules []Rule
	// MergeContexts switches context matching from first-match to
	// merge-all.
	MergeContexts bool
	// Funcs is merged into the template function map.
	Funcs template.FuncMap
	// Logger receives render and copy progress. Defaults to a nop logger.
	Logger logging.Logger
}

// Site renders templates and copies static files. It satisfies the
// reactor's Renderer and Copier contracts.
type Site struct {
	searchPath    string
	outPath       string
	sources       *sources.Sources
	enc           encoding.Encoding
	contexts      []ContextSource
	rules         []Rule
	mergeContexts bool
	funcs         template.FuncMap
	logger        logging.Logger
}

// NewSite creates a Site, resolving the configured encoding. An encoding
// name the WHATWG index does not know is a configuration error.
func NewSite(opts Options) (*Site, error) {
	if opts.SearchPath == "" {
		return nil, fmt.Errorf("search path must not be empty")
	}
	if opts.Sources == nil {
		return nil, fmt.Errorf("sources must not be nil")
	}
	name := opts.Encoding
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("resolving encoding %q: %w", name, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	outPath := opts.OutPath
	if outPath == "" {
		outPath = "."
	}
	return &Site{
		searchPath:    opts.SearchPath,
		outPath:       outPath,
		sources:       opts.Sources,
		enc:           enc,
		contexts:      opts.Contexts,
		rules:         opts.Rules,
		mergeContexts: opts.MergeContexts,
		funcs:         opts.Funcs,
		logger:        logger.WithComponent("renderer"),
	}, nil
}

// SearchPath returns the source directory.
func (s *Site) SearchPath() string { return s.searchPath }

// OutPath returns the output directory.
func (s *Site) OutPath() string { return s.outPath }

// RenderTemplate renders one template, identified by its slash-relative
// path, into the output directory, overwriting any previous artifact. A
// matching rule takes over the whole render.
func (s *Site) RenderTemplate(name string) error {
	s.logger.Info(context.Background(), "rendering", "template", name)

	ctx, err := s.contextFor(name)
	if err != nil {
		return fmt.Errorf("building context for %s: %w", name, err)
	}

	for _, rule := range s.rules {
		if rule.Pattern.MatchString(name) {
			return rule.Render(s, name, ctx)
		}
	}

	tmpl, err := s.parseSet(name)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}

	outFile := filepath.Join(s.outPath, filepath.FromSlash(name))
	if err := s.ensureDir(name); err != nil {
		return err
	}
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outFile, err)
	}
	defer f.Close()

	w := s.enc.NewEncoder().Writer(f)
	if err := tmpl.ExecuteTemplate(w, name, ctx); err != nil {
		return fmt.Errorf("executing %s: %w", name, err)
	}
	return nil
}

// RenderAll renders every given template, collecting per-template failures
// instead of stopping at the first one.
func (s *Site) RenderAll(names []string) error {
	collector := stencilerrors.NewErrorCollector()
	for _, name := range names {
		if err := s.RenderTemplate(name); err != nil {
			collector.AddRender(name, err)
		}
	}
	return collector.Err()
}

// CopyStatic replicates one static file verbatim into the output directory,
// creating intermediate directories as needed.
func (s *Site) CopyStatic(name string) error {
	s.logger.Info(context.Background(), "copying", "file", name)

	srcPath := filepath.Join(s.searchPath, filepath.FromSlash(name))
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", srcPath, err)
	}
	if err := s.ensureDir(name); err != nil {
		return err
	}

	dstPath := filepath.Join(s.outPath, filepath.FromSlash(name))
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying %s: %w", name, err)
	}
	return nil
}

// CopyAll copies every given static file.
func (s *Site) CopyAll(names []string) error {
	collector := stencilerrors.NewErrorCollector()
	for _, name := range names {
		if err := s.CopyStatic(name); err != nil {
			collector.AddError(fmt.Errorf("copy %s: %w", name, err))
		}
	}
	return collector.Err()
}

// Build performs a full pass: render every template and copy every static
// file under the search root.
func (s *Site) Build() error {
	files, err := s.listFiles()
	if err != nil {
		return fmt.Errorf("listing %s: %w", s.searchPath, err)
	}
	collector := stencilerrors.NewErrorCollector()
	if err := s.RenderAll(s.sources.TemplateNames(files)); err != nil {
		collector.AddError(err)
	}
	if err := s.CopyAll(s.sources.StaticNames(files)); err != nil {
		collector.AddError(err)
	}
	return collector.Err()
}

// parseSet parses the named template plus every partial under the search
// root into one template set keyed by slash-relative paths.
func (s *Site) parseSet(name string) (*template.Template, error) {
	root := template.New(name)
	if s.funcs != nil {
		root = root.Funcs(s.funcs)
	}

	text, err := s.readSource(name)
	if err != nil {
		return nil, err
	}
	if _, err := root.Parse(text); err != nil {
		return nil, err
	}

	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f == name || !s.sources.IsPartial(f) {
			continue
		}
		partial, err := s.readSource(f)
		if err != nil {
			return nil, err
		}
		if _, err := root.New(f).Parse(partial); err != nil {
			return nil, fmt.Errorf("parsing partial %s: %w", f, err)
		}
	}
	return root, nil
}

// readSource reads a file under the search root and decodes it from the
// configured encoding.
func (s *Site) readSource(name string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.searchPath, filepath.FromSlash(name)))
	if err != nil {
		return "", err
	}
	decoded, err := s.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return string(decoded), nil
}

// ensureDir creates the output directory a relative file name lands in.
func (s *Site) ensureDir(name string) error {
	dir := filepath.Dir(filepath.Join(s.outPath, filepath.FromSlash(name)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	return nil
}

// listFiles returns the slash-relative paths of every regular file under
// the search root.
func (s *Site) listFiles() ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.searchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.searchPath, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
