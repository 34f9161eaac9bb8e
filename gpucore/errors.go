package gpucore

import "errors"

// Sentinel errors shared by Device implementations and program builders.
var (
	// ErrNilDevice is returned when a nil Device is passed.
	ErrNilDevice = errors.New("gpucore: nil device")

	// ErrNilProgram is returned when a draw has no program or no kernels.
	ErrNilProgram = errors.New("gpucore: nil program")

	// ErrUnboundInput is returned when a program input has no value at draw time.
	ErrUnboundInput = errors.New("gpucore: unbound program input")

	// ErrInvalidAttribute is returned for an attribute layout a device cannot fetch.
	ErrInvalidAttribute = errors.New("gpucore: invalid attribute binding")

	// ErrInvalidCount is returned for a negative vertex count.
	ErrInvalidCount = errors.New("gpucore: invalid vertex count")

	// ErrInvalidDimensions is returned for zero or negative texture sizes.
	ErrInvalidDimensions = errors.New("gpucore: invalid dimensions")

	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("gpucore: unknown resource")

	// ErrOutOfBounds is returned for writes or reads outside a resource.
	ErrOutOfBounds = errors.New("gpucore: out of bounds")

	// ErrFeedbackLoop is returned when a draw samples the texture it renders to.
	ErrFeedbackLoop = errors.New("gpucore: texture bound as both sampler and render target")
)
