//go:build !nogpu

package wgpu

import (
	"strings"
	"testing"

	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/nearest"
	"github.com/gogpu/gpupick/pingpong"
	"github.com/gogpu/gpupick/series"
)

func allPrograms() []*gpucore.ProgramDesc {
	var all []*gpucore.ProgramDesc
	all = append(all, nearest.Programs()...)
	all = append(all, pingpong.Programs()...)
	all = append(all, series.Programs()...)
	return all
}

// skipNagaLimitation skips on shader features naga does not implement yet.
func skipNagaLimitation(t *testing.T, err error) {
	t.Helper()
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
	if strings.Contains(msg, "lowering error") {
		t.Skipf("Skipping: naga lowering limitation: %v", err)
	}
}

func TestCompileSPIRV(t *testing.T) {
	for _, p := range allPrograms() {
		t.Run(p.Label, func(t *testing.T) {
			if p.Source == "" {
				t.Fatal("shader source is empty")
			}
			words, err := CompileSPIRV(p.Source)
			if err != nil {
				skipNagaLimitation(t, err)
				t.Fatalf("CompileSPIRV() = %v", err)
			}
			if words[0] != spirvMagic {
				t.Errorf("SPIR-V magic = %#x, want %#x", words[0], spirvMagic)
			}
		})
	}
}

func TestCompileSPIRVInvalid(t *testing.T) {
	if _, err := CompileSPIRV("fn broken( {"); err == nil {
		t.Error("CompileSPIRV() of invalid WGSL should fail")
	}
}

func TestPrepareSPIRV(t *testing.T) {
	d := newDevice(t, Options{PrecompileSPIRV: true})
	for _, p := range allPrograms() {
		if err := d.Prepare(p); err != nil {
			skipNagaLimitation(t, err)
			t.Fatalf("Prepare(%s) = %v", p.Label, err)
		}
	}
	if len(d.programs) != len(allPrograms()) {
		t.Errorf("programs cached = %d, want %d", len(d.programs), len(allPrograms()))
	}
}
