// Package tree provides the depth-bounded traversal shared by the flattener
// and the output builder.
package tree

import (
	"errors"
	"fmt"
)

// ErrDepthExceeded is matched by every *DepthError.
var ErrDepthExceeded = errors.New("maximum nesting depth exceeded")

// DepthError reports where a walk hit its depth limit.
type DepthError struct {
	Limit int
	At    string
}

func (e *DepthError) Error() string {
	if e.At == "" {
		return fmt.Sprintf("%s (limit %d)", ErrDepthExceeded, e.Limit)
	}
	return fmt.Sprintf("%s at %q (limit %d)", ErrDepthExceeded, e.At, e.Limit)
}

func (e *DepthError) Is(target error) bool {
	return target == ErrDepthExceeded
}

// Visitor receives items in depth-first order. Leave is called only for
// items whose Enter returned descend=true, after their children.
type Visitor[T any] interface {
	Enter(item T, depth int) (descend bool, err error)
	Leave(item T, depth int) error
}

// Funcs adapts plain functions to a Visitor. A nil LeaveFunc is a no-op.
type Funcs[T any] struct {
	EnterFunc func(item T, depth int) (bool, error)
	LeaveFunc func(item T, depth int) error
}

func (f Funcs[T]) Enter(item T, depth int) (bool, error) {
	return f.EnterFunc(item, depth)
}

func (f Funcs[T]) Leave(item T, depth int) error {
	if f.LeaveFunc == nil {
		return nil
	}
	return f.LeaveFunc(item, depth)
}

// Walker walks a forest of T.
type Walker[T any] struct {
	// Children lists the items below item.
	Children func(item T) []T
	// MaxDepth bounds the number of levels; zero or less means unbounded.
	MaxDepth int
	// Label names an item in depth errors. Optional.
	Label func(item T) string
}

// Walk visits items and, where the visitor asks for it, their descendants.
func (w Walker[T]) Walk(items []T, v Visitor[T]) error {
	return w.walk(items, v, 0)
}

func (w Walker[T]) walk(items []T, v Visitor[T], depth int) error {
	for _, item := range items {
		descend, err := v.Enter(item, depth)
		if err != nil {
			return err
		}
		if !descend {
			continue
		}

		children := w.Children(item)
		if len(children) > 0 && w.MaxDepth > 0 && depth+1 >= w.MaxDepth {
			de := &DepthError{Limit: w.MaxDepth}
			if w.Label != nil {
				de.At = w.Label(item)
			}
			return de
		}
		if err := w.walk(children, v, depth+1); err != nil {
			return err
		}
		if err := v.Leave(item, depth); err != nil {
			return err
		}
	}
	return nil
}
