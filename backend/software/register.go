package software

import (
	"github.com/gogpu/gpupick/backend"
	"github.com/gogpu/gpupick/gpucore"
)

func init() {
	backend.Register(backend.NameSoftware, Open)
}

// Open creates a software device sized by cfg. The host provider is ignored.
func Open(cfg backend.Config) (gpucore.Device, error) {
	d, err := New(cfg.SurfaceWidth, cfg.SurfaceHeight)
	if err != nil {
		return nil, err
	}
	d.SetPixelRatio(cfg.Ratio())
	return d, nil
}
