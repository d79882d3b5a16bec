package jsondoc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/fieldmap/internal/tree"
)

func TestParse_PreservesKeyOrder(t *testing.T) {
	v, err := Parse([]byte(`{"zeta": 1, "alpha": {"y": true, "b": null}, "mid": ["x", 2]}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok, "expected Object, got %T", v)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	alpha, _ := obj.Get("alpha")
	assert.Equal(t, []string{"y", "b"}, alpha.(Object).Keys())

	zeta, _ := obj.Get("zeta")
	assert.Equal(t, json.Number("1"), zeta)

	mid, _ := obj.Get("mid")
	assert.Equal(t, Array{"x", json.Number("2")}, mid)
}

func TestParse_DuplicateKeyKeepsFirstPosition(t *testing.T) {
	v, err := Parse([]byte(`{"a": 1, "b": 2, "a": 3}`))
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	a, _ := obj.Get("a")
	assert.Equal(t, json.Number("3"), a)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"truncated", `{"a": [1, 2`},
		{"trailing", `{"a": 1} {"b": 2}`},
		{"bad token", `{"a": tru}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParse_TrailingWhitespaceIsFine(t *testing.T) {
	v, err := Parse([]byte("  \"hello\"  \n"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestObject_MarshalJSONKeepsOrder(t *testing.T) {
	obj := Object{
		{Key: "z", Value: "last"},
		{Key: "a", Value: Object{{Key: "n", Value: json.Number("1.5")}}},
		{Key: "list", Value: Array{true, nil}},
	}
	b, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"last","a":{"n":1.5},"list":[true,null]}`, string(b))

	var empty Object
	b, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestObject_UnmarshalJSON(t *testing.T) {
	var obj Object
	require.NoError(t, json.Unmarshal([]byte(`{"b": 1, "a": 2}`), &obj))
	assert.Equal(t, []string{"b", "a"}, obj.Keys())

	err := json.Unmarshal([]byte(`[1, 2]`), &obj)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "array", typeErr.Got)
}

func TestObject_Set(t *testing.T) {
	var obj Object
	obj.Set("a", 1)
	obj.Set("b", 2)
	obj.Set("a", 3)
	assert.Equal(t, Object{{Key: "a", Value: 3}, {Key: "b", Value: 2}}, obj)
	assert.True(t, obj.Has("b"))
	assert.False(t, obj.Has("c"))
}

func TestTypeOfAndRender(t *testing.T) {
	tests := []struct {
		value    any
		wantType string
		wantText string
	}{
		{"Paris", "string", "Paris"},
		{json.Number("42"), "number", "42"},
		{json.Number("-0.25"), "number", "-0.25"},
		{true, "boolean", "true"},
		{nil, "null", ""},
		{Object{{Key: "k", Value: "v"}}, "object", `{"k":"v"}`},
		{Array{"a", json.Number("1")}, "array", `["a",1]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantType, TypeOf(tt.value), "TypeOf(%#v)", tt.value)
		assert.Equal(t, tt.wantText, Render(tt.value), "Render(%#v)", tt.value)
	}
}

func TestParse_NestingLimit(t *testing.T) {
	deep := strings.Repeat("[", MaxNesting+10) + strings.Repeat("]", MaxNesting+10)
	_, err := Parse([]byte(deep))
	require.Error(t, err)
	assert.ErrorIs(t, err, tree.ErrDepthExceeded)

	var de *tree.DepthError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, MaxNesting, de.Limit)

	ok := strings.Repeat(`{"a":`, MaxNesting) + "1" + strings.Repeat("}", MaxNesting)
	_, err = Parse([]byte(ok))
	assert.NoError(t, err)
}
