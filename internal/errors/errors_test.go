package errors

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownVertexError(t *testing.T) {
	err := &UnknownVertexError{Vertex: "_missing.html", ReferencedBy: "page.html"}
	assert.Equal(t, `unknown vertex "_missing.html" referenced by "page.html"`, err.Error())
}

func TestRenderError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := &RenderError{Template: "page.html", Err: cause}
	assert.ErrorContains(t, err, "page.html")
	assert.ErrorIs(t, err, cause)
}

func TestEventError_Unwrap(t *testing.T) {
	cause := &RenderError{Template: "page.html", Err: fmt.Errorf("boom")}
	err := &EventError{Path: "_base.html", Op: "render", Err: cause}
	assert.ErrorContains(t, err, "render _base.html")

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "page.html", renderErr.Template)
}

func TestErrorCollector_Empty(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())
	assert.NoError(t, ec.Err())
	assert.Empty(t, ec.RenderErrors())
}

func TestErrorCollector_NilErrorsIgnored(t *testing.T) {
	ec := NewErrorCollector()
	ec.AddRender("page.html", nil)
	ec.AddError(nil)
	assert.False(t, ec.HasErrors())
}

func TestErrorCollector_JoinsEverything(t *testing.T) {
	ec := NewErrorCollector()
	ec.AddRender("page.html", fmt.Errorf("bad template"))
	ec.AddError(fmt.Errorf("walk failed"))

	require.True(t, ec.HasErrors())
	err := ec.Err()
	assert.ErrorContains(t, err, "page.html")
	assert.ErrorContains(t, err, "walk failed")

	var renderErr *RenderError
	assert.True(t, errors.As(err, &renderErr))
}

func TestErrorCollector_Clear(t *testing.T) {
	ec := NewErrorCollector()
	ec.AddRender("page.html", fmt.Errorf("bad"))
	ec.Clear()
	assert.False(t, ec.HasErrors())
	assert.NoError(t, ec.Err())
}

func TestErrorCollector_Concurrent(t *testing.T) {
	ec := NewErrorCollector()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ec.AddRender(fmt.Sprintf("page-%d.html", i), fmt.Errorf("fail"))
		}()
	}
	wg.Wait()
	assert.Len(t, ec.RenderErrors(), 20)
}
