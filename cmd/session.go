package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/stencilhq/stencil/internal/config"
	"github.com/stencilhq/stencil/internal/logging"
	"github.com/stencilhq/stencil/internal/reactor"
	"github.com/stencilhq/stencil/internal/renderer"
	"github.com/stencilhq/stencil/internal/scanner"
	"github.com/stencilhq/stencil/internal/sources"
	"github.com/stencilhq/stencil/internal/watcher"
)

// session wires the collaborators every command shares: configuration,
// classifier, site renderer and scanner.
type session struct {
	cfg     *config.Config
	logger  logging.Logger
	root    string
	sources *sources.Sources
	site    *renderer.Site
	scanner *scanner.SiteScanner
}

func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger()

	root, err := filepath.Abs(cfg.Site.SearchPath)
	if err != nil {
		return nil, fmt.Errorf("resolving search path: %w", err)
	}

	src := sources.New(cfg.Site.StaticPaths, cfg.Site.DataPaths, cfg.Site.ExtraDeps)
	site, err := renderer.NewSite(renderer.Options{
		SearchPath:    root,
		OutPath:       cfg.Site.OutPath,
		Encoding:      cfg.Site.Encoding,
		Sources:       src,
		MergeContexts: cfg.Site.MergeContexts,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating site: %w", err)
	}

	extractor := renderer.NewTemplateRefExtractor(site, src)
	return &session{
		cfg:     cfg,
		logger:  logger,
		root:    root,
		sources: src,
		site:    site,
		scanner: scanner.New(root, src, extractor, logger),
	}, nil
}

// fullBuild renders every template and copies every static file.
func (s *session) fullBuild(ctx context.Context) error {
	s.logger.Info(ctx, "building site", "search_path", s.root, "out_path", s.cfg.Site.OutPath)
	return s.site.Build()
}

// watch runs the full build, constructs the dependency graph, and consumes
// notifications until ctx is done. notify, when non-nil, fires after each
// incremental pass.
func (s *session) watch(ctx context.Context, notify func([]string)) error {
	if err := s.fullBuild(ctx); err != nil {
		// A broken page must not prevent the watch session: report and
		// keep going so the author can fix it live.
		s.logger.Error(ctx, err, "initial build finished with errors")
	}

	g, err := s.scanner.BuildGraph(ctx)
	if err != nil {
		return err
	}

	r := reactor.New(reactor.Config{
		SearchPath:  s.root,
		Sources:     s.sources,
		Graph:       g,
		Extractor:   renderer.NewTemplateRefExtractor(s.site, s.sources),
		Renderer:    s.site,
		Copier:      s.site,
		Concurrency: s.cfg.Watch.Concurrency,
		Notify:      notify,
		Logger:      s.logger,
	})

	fw, err := watcher.NewFileWatcher(time.Duration(s.cfg.Watch.DebounceMs)*time.Millisecond, s.logger)
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoTempFilter)
	fw.AddHandler(r.Handler(ctx))

	if err := fw.AddRecursive(s.root); err != nil {
		return fmt.Errorf("watching %s: %w", s.root, err)
	}
	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}

	s.logger.Info(ctx, "watching for changes", "search_path", s.root)
	<-ctx.Done()
	return nil
}
