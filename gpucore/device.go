package gpucore

// Device is the minimal graphics device the picking pipeline runs on.
//
// All coordinates follow one convention: clip space has y up and depth in
// [0, 1]; pixel rows are numbered from the top. Render targets and the
// default surface are RGBA8 with round-to-nearest quantization.
//
// A Device is not safe for concurrent use; callers serialize access the same
// way a single graphics context is used from one thread.
type Device interface {
	// CreateBuffer allocates a vertex buffer of size bytes.
	CreateBuffer(size int) (BufferID, error)

	// WriteBuffer copies data into the buffer starting at offset.
	WriteBuffer(id BufferID, offset int, data []byte) error

	// DestroyBuffer releases the buffer. Unknown IDs are ignored.
	DestroyBuffer(id BufferID)

	// CreateTexture allocates a zero-filled RGBA8 texture.
	CreateTexture(width, height int) (TextureID, error)

	// WriteTexture replaces the texture contents. len(data) must be
	// width*height*4.
	WriteTexture(id TextureID, data []byte) error

	// DestroyTexture releases the texture. Unknown IDs are ignored.
	DestroyTexture(id TextureID)

	// CreateDepthBuffer allocates a depth attachment.
	CreateDepthBuffer(width, height int) (DepthBufferID, error)

	// DestroyDepthBuffer releases the depth attachment. Unknown IDs are ignored.
	DestroyDepthBuffer(id DepthBufferID)

	// Draw executes one draw call.
	Draw(cmd *DrawCommand) error

	// SurfaceSize returns the default surface size in device pixels.
	SurfaceSize() (width, height int)

	// PixelRatio returns device pixels per logical pixel.
	PixelRatio() float64

	// ReadPixels copies a rectangle of the default surface into dst as
	// tightly packed RGBA8 rows. len(dst) must be at least width*height*4.
	ReadPixels(x, y, width, height int, dst []byte) error
}

// AttributeBinding describes how a program attribute is fetched from a buffer.
type AttributeBinding struct {
	Buffer BufferID
	Type   ElementType
	// Size is the number of components, 1 to 4.
	Size       int
	Normalized bool
	// Stride is the byte distance between consecutive vertices; 0 means
	// tightly packed.
	Stride int
	Offset int
	// Divisor advances the attribute once per Divisor instances; 0 advances
	// it per vertex.
	Divisor int
}

// ByteStride returns the effective stride in bytes.
func (a AttributeBinding) ByteStride() int {
	if a.Stride > 0 {
		return a.Stride
	}
	return a.Type.Size() * a.Size
}

// Validate checks the layout is fetchable.
func (a AttributeBinding) Validate() error {
	if a.Buffer == InvalidID || a.Type.Size() == 0 || a.Size < 1 || a.Size > 4 || a.Offset < 0 || a.Stride < 0 {
		return ErrInvalidAttribute
	}
	return nil
}

// Framebuffer is an offscreen render target.
type Framebuffer struct {
	Color TextureID
	// Depth is optional; InvalidID means no depth attachment.
	Depth DepthBufferID
}

// DrawCommand is a fully bound draw call.
type DrawCommand struct {
	Program *ProgramDesc
	Count   int

	// Framebuffer is nil for the default surface.
	Framebuffer *Framebuffer
	Viewport    Viewport

	// Clear clears color to ClearColor and depth to 1 before drawing.
	Clear      bool
	ClearColor Color

	DepthCompare CompareFunction

	Attributes map[string]AttributeBinding
	Uniforms   map[string]UniformValue
	Textures   map[string]TextureID
}

// NewDrawCommand returns an empty command for program.
func NewDrawCommand(program *ProgramDesc, count int) *DrawCommand {
	return &DrawCommand{
		Program:    program,
		Count:      count,
		Attributes: make(map[string]AttributeBinding),
		Uniforms:   make(map[string]UniformValue),
		Textures:   make(map[string]TextureID),
	}
}

// Validate checks that every input the program declares is bound.
func (c *DrawCommand) Validate() error {
	if c.Program == nil {
		return ErrNilProgram
	}
	if c.Count < 0 {
		return ErrInvalidCount
	}
	for _, name := range c.Program.Attributes {
		b, ok := c.Attributes[name]
		if !ok {
			return &InputError{Kind: "attribute", Name: name, Err: ErrUnboundInput}
		}
		if err := b.Validate(); err != nil {
			return &InputError{Kind: "attribute", Name: name, Err: err}
		}
	}
	for _, name := range c.Program.Uniforms {
		if _, ok := c.Uniforms[name]; !ok {
			return &InputError{Kind: "uniform", Name: name, Err: ErrUnboundInput}
		}
	}
	for _, name := range c.Program.Textures {
		if id, ok := c.Textures[name]; !ok || id == InvalidID {
			return &InputError{Kind: "texture", Name: name, Err: ErrUnboundInput}
		}
	}
	return nil
}

// InputError reports a problem with one named program input.
type InputError struct {
	Kind string
	Name string
	Err  error
}

func (e *InputError) Error() string {
	return "gpucore: " + e.Kind + " " + e.Name + ": " + e.Err.Error()
}

func (e *InputError) Unwrap() error { return e.Err }
