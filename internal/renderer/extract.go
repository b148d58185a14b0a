package renderer

import (
	"fmt"
	"text/template/parse"

	"github.com/stencilhq/stencil/internal/graph"
	"github.com/stencilhq/stencil/internal/sources"
)

// TemplateRefExtractor extracts the set of files a template or partial
// textually references through {{template}} and {{block}} actions. It reads
// current on-disk content on every call, which is what the graph refresh
// needs after an edit.
type TemplateRefExtractor struct {
	site    *Site
	sources *sources.Sources
}

// NewTemplateRefExtractor creates an extractor over the site's search root.
func NewTemplateRefExtractor(site *Site, src *sources.Sources) *TemplateRefExtractor {
	return &TemplateRefExtractor{site: site, sources: src}
}

// Extract returns the referenced file set of name. Files that never pass
// through the template engine reference nothing. Names defined inside the
// file itself ({{define}} and {{block}} bodies) are local and excluded; a
// malformed template is reported to the caller.
func (e *TemplateRefExtractor) Extract(name string) (graph.Set, error) {
	if !e.sources.IsSource(name) {
		return graph.Set{}, nil
	}

	text, err := e.site.readSource(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	tree := parse.New(name)
	tree.Mode = parse.SkipFuncCheck | parse.ParseComments
	treeSet := make(map[string]*parse.Tree)
	if _, err := tree.Parse(text, "", "", treeSet); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	refs := make(graph.Set)
	for _, t := range treeSet {
		if t.Root == nil {
			continue
		}
		collectTemplateRefs(t.Root, refs)
	}
	// Names the file defines locally are not edges to other files.
	for local := range treeSet {
		delete(refs, local)
	}
	return refs, nil
}

// collectTemplateRefs walks a parse tree gathering {{template "x"}} names.
func collectTemplateRefs(node parse.Node, refs graph.Set) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			collectTemplateRefs(child, refs)
		}
	case *parse.TemplateNode:
		refs.Add(n.Name)
	case *parse.IfNode:
		collectTemplateRefs(n.List, refs)
		collectTemplateRefs(n.ElseList, refs)
	case *parse.RangeNode:
		collectTemplateRefs(n.List, refs)
		collectTemplateRefs(n.ElseList, refs)
	case *parse.WithNode:
		collectTemplateRefs(n.List, refs)
		collectTemplateRefs(n.ElseList, refs)
	}
}
