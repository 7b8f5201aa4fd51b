package sim

import (
	"fmt"
	"sync"

	"github.com/smazurov/camcore/internal/camera"
)

// Textures hands out preview surfaces with increasing texture ids. It
// implements camera.SurfaceProvider.
type Textures struct {
	mu   sync.Mutex
	next int64
	live map[camera.Surface]int64
	err  error
}

// NewTextures creates an empty texture registry.
func NewTextures() *Textures {
	return &Textures{live: make(map[camera.Surface]int64)}
}

// CreateSurface implements camera.SurfaceProvider.
func (t *Textures) CreateSurface() (camera.Surface, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return "", 0, t.err
	}
	t.next++
	surface := camera.Surface(fmt.Sprintf("texture-%d", t.next))
	t.live[surface] = t.next
	return surface, t.next, nil
}

// ReleaseSurface implements camera.SurfaceProvider.
func (t *Textures) ReleaseSurface(s camera.Surface) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, s)
}

// Live returns the number of surfaces not yet released.
func (t *Textures) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// SetError makes CreateSurface fail with err until cleared with nil.
func (t *Textures) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}
