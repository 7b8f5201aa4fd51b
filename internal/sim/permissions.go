package sim

import "sync"

// Permissions is a scripted camera.PermissionSource.
type Permissions struct {
	mu       sync.Mutex
	missing  []string
	checkErr error
	waiting  []func(bool)
}

// NewPermissions creates a source reporting missing as not yet granted.
func NewPermissions(missing ...string) *Permissions {
	return &Permissions{missing: append([]string(nil), missing...)}
}

// CheckPermissions implements camera.PermissionSource.
func (p *Permissions) CheckPermissions() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkErr != nil {
		return nil, p.checkErr
	}
	return append([]string{}, p.missing...), nil
}

// RequestPermissions implements camera.PermissionSource. The answer is held
// until Grant or Deny; with nothing missing it is delivered at once.
func (p *Permissions) RequestPermissions(onResult func(granted bool)) {
	p.mu.Lock()
	if len(p.missing) == 0 {
		p.mu.Unlock()
		go onResult(true)
		return
	}
	p.waiting = append(p.waiting, onResult)
	p.mu.Unlock()
}

// Grant marks everything granted and answers outstanding requests.
func (p *Permissions) Grant() {
	p.answer(true)
}

// Deny answers outstanding requests with a refusal.
func (p *Permissions) Deny() {
	p.answer(false)
}

// SetCheckError makes CheckPermissions fail with err until cleared with nil.
func (p *Permissions) SetCheckError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkErr = err
}

func (p *Permissions) answer(granted bool) {
	p.mu.Lock()
	if granted {
		p.missing = nil
	}
	waiting := p.waiting
	p.waiting = nil
	p.mu.Unlock()

	for _, fn := range waiting {
		fn(granted)
	}
}
