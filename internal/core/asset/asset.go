// Package asset resolves asset ids from the external catalog into loaded
// models with their animation clips.
package asset

import (
	"context"

	"github.com/zeusync/replica/internal/core/animation"
)

// Model is a loaded asset ready to attach to a scene node.
type Model struct {
	ID    int
	Name  string
	Clips map[string]*animation.Clip
}

// Loader loads an asset by id. Implementations may block; callers run them
// off the frame goroutine.
type Loader interface {
	Load(ctx context.Context, id int) (*Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, id int) (*Model, error)

func (f LoaderFunc) Load(ctx context.Context, id int) (*Model, error) {
	return f(ctx, id)
}
