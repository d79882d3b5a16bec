package tree

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	name string
	kids []item
}

func walker(maxDepth int) Walker[item] {
	return Walker[item]{
		Children: func(it item) []item { return it.kids },
		MaxDepth: maxDepth,
		Label:    func(it item) string { return it.name },
	}
}

func sample() []item {
	return []item{
		{name: "a", kids: []item{
			{name: "a1"},
			{name: "a2", kids: []item{{name: "a2x"}}},
		}},
		{name: "b"},
	}
}

func TestWalk_Order(t *testing.T) {
	var events []string
	v := Funcs[item]{
		EnterFunc: func(it item, depth int) (bool, error) {
			events = append(events, strings.Repeat(">", depth)+it.name)
			return true, nil
		},
		LeaveFunc: func(it item, depth int) error {
			events = append(events, "<"+it.name)
			return nil
		},
	}
	require.NoError(t, walker(0).Walk(sample(), v))
	assert.Equal(t, []string{
		"a", ">a1", "<a1", ">a2", ">>a2x", "<a2x", "<a2", "<a", "b", "<b",
	}, events)
}

func TestWalk_SkipDescendSkipsLeave(t *testing.T) {
	var entered, left []string
	v := Funcs[item]{
		EnterFunc: func(it item, depth int) (bool, error) {
			entered = append(entered, it.name)
			return it.name != "a2", nil
		},
		LeaveFunc: func(it item, depth int) error {
			left = append(left, it.name)
			return nil
		},
	}
	require.NoError(t, walker(0).Walk(sample(), v))
	assert.Equal(t, []string{"a", "a1", "a2", "b"}, entered)
	assert.Equal(t, []string{"a1", "a", "b"}, left)
}

func TestWalk_DepthExceeded(t *testing.T) {
	v := Funcs[item]{EnterFunc: func(item, int) (bool, error) { return true, nil }}

	err := walker(2).Walk(sample(), v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDepthExceeded))

	var de *DepthError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "a2", de.At)
	assert.Equal(t, 2, de.Limit)

	assert.NoError(t, walker(3).Walk(sample(), v))
}

func TestWalk_EnterErrorStops(t *testing.T) {
	boom := errors.New("boom")
	var seen int
	v := Funcs[item]{EnterFunc: func(it item, _ int) (bool, error) {
		seen++
		if it.name == "a1" {
			return false, boom
		}
		return true, nil
	}}
	err := walker(0).Walk(sample(), v)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, seen)
}
