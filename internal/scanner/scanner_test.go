package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/graph"
	"github.com/stencilhq/stencil/internal/sources"
)

// mapExtractor serves canned reference sets.
type mapExtractor struct {
	refs map[string]graph.Set
	errs map[string]error
}

func (m *mapExtractor) Extract(name string) (graph.Set, error) {
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	return m.refs[name], nil
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"page.html":       "",
		"_base.html":      "",
		"data/info.json":  "{}",
		"static/logo.png": "png",
	})

	s := New(root, sources.New(nil, nil, nil), &mapExtractor{}, nil)
	files, err := s.ListFiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"page.html", "_base.html", "data/info.json", "static/logo.png"}, files)
}

func TestDependencies_UnionsExtraDeps(t *testing.T) {
	root := t.TempDir()
	src := sources.New(nil, []string{"data"}, map[string][]string{
		"page.html": {"data/info.json"},
	})
	extractor := &mapExtractor{refs: map[string]graph.Set{
		"page.html": graph.NewSet("_base.html"),
	}}

	s := New(root, src, extractor, nil)
	deps, err := s.Dependencies("page.html", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"_base.html", "data/info.json"}, deps.Members())
}

func TestDependencies_FiltersRefsWithoutBackingFile(t *testing.T) {
	root := t.TempDir()
	src := sources.New(nil, nil, map[string][]string{
		"page.html": {"data/info.json"},
	})
	// "nav" is a define name invoked across files, not a file.
	extractor := &mapExtractor{refs: map[string]graph.Set{
		"page.html": graph.NewSet("_base.html", "nav"),
	}}

	s := New(root, src, extractor, nil)
	deps, err := s.Dependencies("page.html", graph.NewSet("page.html", "_base.html"))
	require.NoError(t, err)

	// The declared dependency survives the filter even though it is not in
	// the known set; only extracted references are restricted.
	assert.ElementsMatch(t, []string{"_base.html", "data/info.json"}, deps.Members())
}

func TestBuildGraph(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"page.html":       "",
		"about.html":      "",
		"_base.html":      "",
		"data/info.json":  "{}",
		"static/logo.png": "png",
		".hidden":         "",
	})

	src := sources.New([]string{"static"}, []string{"data"}, map[string][]string{
		"page.html": {"data/info.json"},
	})
	extractor := &mapExtractor{refs: map[string]graph.Set{
		"page.html":  graph.NewSet("_base.html"),
		"about.html": graph.NewSet("_base.html"),
	}}

	s := New(root, src, extractor, nil)
	g, err := s.BuildGraph(context.Background())
	require.NoError(t, err)

	// Templates, partials and data files are vertices; static and
	// ignored files are not.
	assert.True(t, g.HasVertex("page.html"))
	assert.True(t, g.HasVertex("_base.html"))
	assert.True(t, g.HasVertex("data/info.json"))
	assert.False(t, g.HasVertex("static/logo.png"))
	assert.False(t, g.HasVertex(".hidden"))

	assert.ElementsMatch(t, []string{"_base.html", "data/info.json"}, g.Parents("page.html").Members())
	assert.ElementsMatch(t, []string{"page.html", "about.html"}, g.Children("_base.html").Members())
	assert.Equal(t, []string{"page.html"}, g.Children("data/info.json").Members())
}

func TestBuildGraph_DefineNameReferenceTolerated(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"page.html":  "",
		"_base.html": "",
	})

	// page.html invokes both the partial and a name the partial defines;
	// only the partial becomes an edge.
	extractor := &mapExtractor{refs: map[string]graph.Set{
		"page.html": graph.NewSet("_base.html", "nav"),
	}}
	s := New(root, sources.New(nil, nil, nil), extractor, nil)

	g, err := s.BuildGraph(context.Background())
	require.NoError(t, err)

	assert.False(t, g.HasVertex("nav"))
	assert.Equal(t, []string{"_base.html"}, g.Parents("page.html").Members())
}

func TestBuildGraph_DanglingDeclarationFails(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"page.html": ""})

	src := sources.New(nil, []string{"data"}, map[string][]string{
		"page.html": {"data/missing.json"},
	})
	s := New(root, src, &mapExtractor{}, nil)

	_, err := s.BuildGraph(context.Background())
	require.Error(t, err)

	var unknownErr *stencilerrors.UnknownVertexError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "data/missing.json", unknownErr.Vertex)
}

func TestBuildGraph_ExtractorFailureAborts(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"page.html": ""})

	extractor := &mapExtractor{errs: map[string]error{
		"page.html": fmt.Errorf("malformed template"),
	}}
	s := New(root, sources.New(nil, nil, nil), extractor, nil)

	_, err := s.BuildGraph(context.Background())
	assert.ErrorContains(t, err, "page.html")
}
