package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gpupick/gpucore"
)

// stubDevice satisfies gpucore.Device for registry tests.
type stubDevice struct {
	gpucore.Device
	name string
}

func register(t *testing.T, name string, f Factory) {
	t.Helper()
	Register(name, f)
	t.Cleanup(func() { Unregister(name) })
}

func stub(name string) Factory {
	return func(Config) (gpucore.Device, error) { return &stubDevice{name: name}, nil }
}

var cfg = Config{SurfaceWidth: 4, SurfaceHeight: 4}

func TestRegisterAndOpen(t *testing.T) {
	register(t, "test-a", stub("test-a"))
	if !IsRegistered("test-a") {
		t.Fatal("IsRegistered(test-a) = false after Register")
	}
	if !slices.Contains(Available(), "test-a") {
		t.Errorf("Available() = %v, want test-a listed", Available())
	}
	dev, err := Open("test-a", cfg)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if dev.(*stubDevice).name != "test-a" {
		t.Errorf("Open() returned device %q", dev.(*stubDevice).name)
	}
}

func TestOpenUnknown(t *testing.T) {
	if _, err := Open("missing", cfg); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(missing) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestOpenInvalidConfig(t *testing.T) {
	register(t, "test-a", stub("test-a"))
	if _, err := Open("test-a", Config{SurfaceWidth: 0, SurfaceHeight: 1}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Open() error = %v, want ErrInvalidConfig", err)
	}
}

func TestDefaultPriority(t *testing.T) {
	register(t, NameSoftware, stub(NameSoftware))
	register(t, "zz-extra", stub("zz-extra"))

	_, name, err := Default(cfg)
	if err != nil {
		t.Fatalf("Default() = %v", err)
	}
	if name != NameSoftware {
		t.Errorf("Default() chose %q, want %q", name, NameSoftware)
	}

	register(t, NameWGPU, func(Config) (gpucore.Device, error) {
		return nil, errors.New("no adapter")
	})
	if _, name, _ := Default(cfg); name != NameSoftware {
		t.Errorf("Default() with failing wgpu chose %q, want fallback to %q", name, NameSoftware)
	}
}

func TestDefaultNone(t *testing.T) {
	for _, name := range Available() {
		f := factories[name]
		Unregister(name)
		t.Cleanup(func() { Register(name, f) })
	}
	if _, _, err := Default(cfg); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestConfigRatio(t *testing.T) {
	if got := (Config{}).Ratio(); got != 1 {
		t.Errorf("Ratio() = %v, want 1", got)
	}
	if got := (Config{PixelRatio: 2}).Ratio(); got != 2 {
		t.Errorf("Ratio() = %v, want 2", got)
	}
}
