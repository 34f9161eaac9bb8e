package gpucore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/internal/metrics"
)

// Binder supplies the value of one named program input at draw time.
//
// A binder writes into cmd: an attribute binding, a uniform, a texture, or
// (for render targets) the framebuffer and viewport. Binders may upload
// data to dev before writing the command.
type Binder interface {
	Bind(dev Device, cmd *DrawCommand, name string) error
}

// Committer is implemented by target binders whose state advances only
// once a draw into them has succeeded. ProgramBuilder.Draw calls Commit
// with the command after Device.Draw returns nil.
type Committer interface {
	Commit(cmd *DrawCommand)
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func(dev Device, cmd *DrawCommand, name string) error

// Bind calls f.
func (f BinderFunc) Bind(dev Device, cmd *DrawCommand, name string) error {
	return f(dev, cmd, name)
}

// Bind sets the uniform to u.
func (u UniformValue) Bind(_ Device, cmd *DrawCommand, name string) error {
	cmd.Uniforms[name] = u
	return nil
}

// Uniform is a mutable uniform binder. The zero value binds (0, 0, 0, 0).
type Uniform struct {
	mu    sync.Mutex
	value UniformValue
}

// NewUniform returns a uniform holding v.
func NewUniform(v ...float32) *Uniform {
	return &Uniform{value: Vec4(v...)}
}

// Set replaces the value; missing components are zero.
func (u *Uniform) Set(v ...float32) {
	u.mu.Lock()
	u.value = Vec4(v...)
	u.mu.Unlock()
}

// Value returns the current value.
func (u *Uniform) Value() UniformValue {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.value
}

// Bind writes the current value into cmd.
func (u *Uniform) Bind(_ Device, cmd *DrawCommand, name string) error {
	cmd.Uniforms[name] = u.Value()
	return nil
}

// StaticAttribute binds an attribute that already lives in a device buffer.
type StaticAttribute AttributeBinding

// Bind writes the binding into cmd.
func (a StaticAttribute) Bind(_ Device, cmd *DrawCommand, name string) error {
	cmd.Attributes[name] = AttributeBinding(a)
	return nil
}

// ProgramBuilder holds a program and the binders for its named inputs.
//
// Draw invokes the target binder first, then attribute binders in
// declaration order, then uniform binders sorted by name, and finally
// validates that every declared input received a value.
type ProgramBuilder struct {
	program      *ProgramDesc
	target       Binder
	targetName   string
	attributes   map[string]Binder
	uniforms     map[string]Binder
	depthCompare CompareFunction
	clear        *Color
}

// NewProgramBuilder returns a builder for program.
func NewProgramBuilder(program *ProgramDesc) *ProgramBuilder {
	return &ProgramBuilder{
		program:    program,
		attributes: make(map[string]Binder),
		uniforms:   make(map[string]Binder),
	}
}

// Program returns the program description.
func (b *ProgramBuilder) Program() *ProgramDesc { return b.program }

// SetAttribute binds the named attribute. A nil binder unbinds it.
func (b *ProgramBuilder) SetAttribute(name string, binder Binder) *ProgramBuilder {
	if binder == nil {
		delete(b.attributes, name)
		return b
	}
	b.attributes[name] = binder
	return b
}

// Attribute returns the binder of the named attribute, or nil.
func (b *ProgramBuilder) Attribute(name string) Binder { return b.attributes[name] }

// SetUniform binds the named uniform or texture. A nil binder unbinds it.
func (b *ProgramBuilder) SetUniform(name string, binder Binder) *ProgramBuilder {
	if binder == nil {
		delete(b.uniforms, name)
		return b
	}
	b.uniforms[name] = binder
	return b
}

// Uniform returns the binder of the named uniform, or nil.
func (b *ProgramBuilder) Uniform(name string) Binder { return b.uniforms[name] }

// SetTarget sets the render target binder. name is the texture input the
// target also provides as a sampler, or "" when the program samples nothing.
// Without a target the draw goes to the default surface.
func (b *ProgramBuilder) SetTarget(name string, target Binder) *ProgramBuilder {
	b.targetName = name
	b.target = target
	return b
}

// SetDepthTest selects the depth compare function of subsequent draws.
func (b *ProgramBuilder) SetDepthTest(c CompareFunction) *ProgramBuilder {
	b.depthCompare = c
	return b
}

// SetClear makes subsequent draws clear the color attachment to c first.
// A nil c draws over the existing contents.
func (b *ProgramBuilder) SetClear(c *Color) *ProgramBuilder {
	b.clear = c
	return b
}

// Command binds every input and returns the resulting command without
// drawing it.
func (b *ProgramBuilder) Command(dev Device, count int) (*DrawCommand, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if err := b.program.Validate(); err != nil {
		return nil, err
	}
	cmd := NewDrawCommand(b.program, count)
	w, h := dev.SurfaceSize()
	cmd.Viewport = Viewport{Width: w, Height: h}
	cmd.DepthCompare = b.depthCompare
	if b.clear != nil {
		cmd.Clear = true
		cmd.ClearColor = *b.clear
	}

	if b.target != nil {
		if err := b.target.Bind(dev, cmd, b.targetName); err != nil {
			return nil, fmt.Errorf("bind target: %w", err)
		}
	}
	for _, name := range b.program.Attributes {
		binder, ok := b.attributes[name]
		if !ok {
			return nil, &InputError{Kind: "attribute", Name: name, Err: ErrUnboundInput}
		}
		if err := binder.Bind(dev, cmd, name); err != nil {
			return nil, fmt.Errorf("bind attribute %s: %w", name, err)
		}
	}
	names := make([]string, 0, len(b.uniforms))
	for name := range b.uniforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := b.uniforms[name].Bind(dev, cmd, name); err != nil {
			return nil, fmt.Errorf("bind uniform %s: %w", name, err)
		}
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Draw binds every input and issues count vertices.
func (b *ProgramBuilder) Draw(dev Device, count int) error {
	cmd, err := b.Command(dev, count)
	if err != nil {
		return err
	}
	if err := dev.Draw(cmd); err != nil {
		return fmt.Errorf("draw %s: %w", b.program.Label, err)
	}
	if c, ok := b.target.(Committer); ok {
		c.Commit(cmd)
	}
	metrics.RenderPassesTotal.WithLabelValues(b.program.Label).Inc()
	gpupick.Logger().Debug("gpucore: draw",
		"program", b.program.Label,
		"count", count,
		"offscreen", cmd.Framebuffer != nil,
		"width", cmd.Viewport.Width,
		"height", cmd.Viewport.Height)
	return nil
}
