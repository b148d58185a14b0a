package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilhq/stencil/internal/graph"
)

func testSources() *Sources {
	return New(
		[]string{"static"},
		[]string{"data"},
		map[string][]string{"page.html": {"data/info.json"}},
	)
}

func TestClassify(t *testing.T) {
	s := testSources()

	tests := []struct {
		name string
		want Role
	}{
		{"page.html", RoleTemplate},
		{"blog/post.html", RoleTemplate},
		{"_base.html", RolePartial},
		{"partials/_nav.html", RolePartial},
		{"_partials/nav.html", RolePartial},
		{".hidden.html", RoleIgnored},
		{".cache/page.html", RoleIgnored},
		{"blog/.draft.html", RoleIgnored},
		{"static/logo.png", RoleStatic},
		{"static/css/site.css", RoleStatic},
		{"data/info.json", RoleData},
		{"data/authors.yaml", RoleData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Classify(tt.name))
		})
	}
}

func TestClassify_ExactlyOneRole(t *testing.T) {
	s := testSources()
	paths := []string{
		"page.html", "_base.html", ".hidden", "static/logo.png",
		"data/info.json", "data/_shared.json", "static/.DS_Store",
	}
	for _, p := range paths {
		holds := 0
		if s.Classify(p) == RolePartial {
			holds++
		}
		if s.Classify(p) == RoleIgnored {
			holds++
		}
		if s.Classify(p) == RoleStatic {
			holds++
		}
		if s.Classify(p) == RoleData {
			holds++
		}
		if s.Classify(p) == RoleTemplate {
			holds++
		}
		assert.Equal(t, 1, holds, "path %q", p)
	}
}

func TestClassify_Precedence(t *testing.T) {
	// A partial under a data prefix is a partial, never data.
	s := New([]string{"_static"}, []string{"data"}, nil)
	assert.Equal(t, RolePartial, s.Classify("data/_shared.json"))
	assert.True(t, s.IsData("data/_shared.json"))
	assert.False(t, s.IsTemplate("data/_shared.json"))

	// Partial wins over static, ignored wins over static.
	assert.Equal(t, RolePartial, s.Classify("_static/file.css"))
	assert.Equal(t, RoleIgnored, s.Classify("data/.secret.json"))
}

func TestClassify_NoConfiguredPrefixes(t *testing.T) {
	s := New(nil, nil, nil)
	assert.Equal(t, RoleTemplate, s.Classify("static/logo.png"))
	assert.Equal(t, RoleTemplate, s.Classify("data/info.json"))
}

func TestIsSource(t *testing.T) {
	s := testSources()
	assert.True(t, s.IsSource("page.html"))
	assert.True(t, s.IsSource("_base.html"))
	assert.False(t, s.IsSource("data/info.json"))
	assert.False(t, s.IsSource("static/logo.png"))
	assert.False(t, s.IsSource(".hidden"))
}

func TestExtraDepsFor(t *testing.T) {
	s := testSources()
	assert.Equal(t, []string{"data/info.json"}, s.ExtraDepsFor("page.html"))
	assert.Nil(t, s.ExtraDepsFor("about.html"))
	assert.Nil(t, New(nil, nil, nil).ExtraDepsFor("page.html"))
}

func TestDependencyTargets(t *testing.T) {
	s := testSources()
	g, err := graph.FromParents(map[string]graph.Set{
		"page.html":      graph.NewSet("_base.html", "data/info.json"),
		"about.html":     graph.NewSet("_base.html"),
		"_base.html":     {},
		"data/info.json": {},
	})
	require.NoError(t, err)

	t.Run("template is its own target", func(t *testing.T) {
		assert.Equal(t, []string{"page.html"}, s.DependencyTargets(g, "page.html"))
	})

	t.Run("partial targets its template descendants", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"page.html", "about.html"}, s.DependencyTargets(g, "_base.html"))
	})

	t.Run("data file targets declared dependents", func(t *testing.T) {
		assert.Equal(t, []string{"page.html"}, s.DependencyTargets(g, "data/info.json"))
	})

	t.Run("static is its own target", func(t *testing.T) {
		assert.Equal(t, []string{"static/logo.png"}, s.DependencyTargets(g, "static/logo.png"))
	})

	t.Run("ignored has no targets", func(t *testing.T) {
		assert.Empty(t, s.DependencyTargets(g, ".hidden.html"))
	})

	t.Run("unknown data file has no targets yet", func(t *testing.T) {
		assert.Empty(t, s.DependencyTargets(g, "data/new.json"))
	})
}

func TestNameFilters(t *testing.T) {
	s := testSources()
	files := []string{
		"page.html",
		"_base.html",
		".hidden",
		"static/logo.png",
		"data/info.json",
	}

	assert.Equal(t, []string{"page.html"}, s.TemplateNames(files))
	assert.Equal(t, []string{"static/logo.png"}, s.StaticNames(files))
	assert.Equal(t, []string{"data/info.json"}, s.DataNames(files))
	assert.Equal(t, []string{"page.html", "_base.html"}, s.SourceNames(files))
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "template", RoleTemplate.String())
	assert.Equal(t, "partial", RolePartial.String())
	assert.Equal(t, "ignored", RoleIgnored.String())
	assert.Equal(t, "static", RoleStatic.String())
	assert.Equal(t, "data", RoleData.String())
}
