package sim

import "github.com/smazurov/camcore/internal/camera"

// Platform bundles the simulated collaborators a camera.Camera needs.
type Platform struct {
	Catalog     *Catalog
	Driver      *Driver
	Permissions *Permissions
	Textures    *Textures
}

// NewPlatform creates a simulated platform over catalog. Permissions named
// in missing start out ungranted.
func NewPlatform(catalog *Catalog, missing ...string) *Platform {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Platform{
		Catalog:     catalog,
		Driver:      NewDriver(catalog),
		Permissions: NewPermissions(missing...),
		Textures:    NewTextures(),
	}
}

// CameraOptions wires the platform into camera options.
func (p *Platform) CameraOptions(observer camera.Observer) camera.Options {
	return camera.Options{
		Driver:          p.Driver,
		Characteristics: p.Catalog,
		Permissions:     p.Permissions,
		Surfaces:        p.Textures,
		Observer:        observer,
	}
}

// Close stops the driver's callback goroutine.
func (p *Platform) Close() {
	p.Driver.Close()
}
