package sleuth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArguments(t *testing.T) {
	d := NewWebSearchTool(nil).Descriptor()

	assert.NoError(t, d.Validate(Arguments{"search_string": "vips"}))
	assert.NoError(t, d.Validate(Arguments{"search_string": "vips", "max_results": float64(3)}))
	assert.NoError(t, d.Validate(Arguments{"search_string": "vips", "max_results": json.Number("2")}))
	assert.NoError(t, d.Validate(Arguments{"search_string": "vips", "unknown": true}))

	err := d.Validate(Arguments{"search_string": "  ", "max_results": 2.5})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{`"max_results" must be integer`, `empty "search_string"`}, ve.Problems)

	assert.ErrorContains(t, d.Validate(Arguments{}), `missing "search_string"`)
}

func TestArgumentsAccessors(t *testing.T) {
	args := Arguments{"s": "  padded ", "n": float64(4), "i": 3, "j": json.Number("9"), "b": true}
	assert.Equal(t, "padded", args.String("s"))
	assert.Equal(t, "4", args.String("n"))
	assert.Equal(t, "", args.String("missing"))
	assert.Equal(t, 4, args.Int("n", 0))
	assert.Equal(t, 3, args.Int("i", 0))
	assert.Equal(t, 9, args.Int("j", 0))
	assert.Equal(t, 7, args.Int("b", 7))
}

func TestSchemaMap(t *testing.T) {
	m := NewDocumentFetchTool(nil, 0, nil).Descriptor().Parameters.Map()
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, []string{"web_url"}, m["required"])
	props := m["properties"].(map[string]any)
	assert.Equal(t, "string", props["web_url"].(map[string]any)["type"])

	empty := Schema{}.Map()
	assert.Equal(t, "object", empty["type"])
	assert.NotContains(t, empty, "required")
}

func TestToolSet(t *testing.T) {
	first := namedTool{name: "a", call: func(context.Context, Arguments) (ToolOutput, error) { return ToolOutput{Text: "first"}, nil }}
	second := namedTool{name: "b"}
	replacement := namedTool{name: "a", call: func(context.Context, Arguments) (ToolOutput, error) { return ToolOutput{Text: "replaced"}, nil }}

	ts := NewToolSet(first, nil, second, replacement)
	assert.Equal(t, 2, ts.Len())
	names := []string{}
	for _, d := range ts.Descriptors() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	tool, ok := ts.Get(" a ")
	require.True(t, ok)
	out, err := tool.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "replaced", out.Text)

	_, ok = ts.Get("c")
	assert.False(t, ok)

	var nilSet *ToolSet
	assert.Zero(t, nilSet.Len())
	assert.Nil(t, nilSet.Descriptors())
}

func TestNewToolErrorClassifies(t *testing.T) {
	tests := []struct {
		err  error
		want ToolErrorKind
	}{
		{context.Canceled, ToolErrorCanceled},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ToolErrorTimeout},
		{&ProviderError{Provider: "bing", StatusCode: 401, Err: ErrUnauthorized}, ToolErrorAuth},
		{&ProviderError{Provider: "brave", StatusCode: 429, Err: ErrRateLimited}, ToolErrorRateLimited},
		{&ProviderError{Provider: "tavily", Err: ErrUnreachable}, ToolErrorUnreachable},
		{&net.OpError{Op: "dial", Err: errors.New("connection refused")}, ToolErrorUnreachable},
		{&ProviderError{Provider: "bing", StatusCode: 500, Err: errors.New("server error")}, ToolErrorProvider},
		{errors.New("something odd"), ToolErrorInternal},
	}
	for _, tt := range tests {
		te := NewToolError("search", tt.err)
		assert.Equal(t, tt.want, te.Kind, tt.err.Error())
		assert.ErrorIs(t, te, tt.err)
	}

	inner := &ToolError{Kind: ToolErrorTimeout, Err: ErrTimeout}
	assert.Same(t, inner, NewToolError("fetch", inner))
	assert.Equal(t, "fetch", inner.Tool)
}

func TestProviderErrorMessage(t *testing.T) {
	assert.Equal(t, "bing: http 401: unauthorized", (&ProviderError{Provider: "bing", StatusCode: 401, Err: ErrUnauthorized}).Error())
	assert.Equal(t, "tavily: unreachable", (&ProviderError{Provider: "tavily", Err: ErrUnreachable}).Error())
}

func TestToolChoiceString(t *testing.T) {
	assert.Equal(t, "auto", Auto().String())
	assert.Equal(t, "auto", ToolChoice{}.String())
	assert.Equal(t, "none", NoTools().String())
	assert.Equal(t, "forced(search_web_for_documentation)", Forced(SearchToolName).String())
	assert.Equal(t, NoTools(), StaticChoice(NoTools()).Choose(Turn{Iteration: 9}))
}
