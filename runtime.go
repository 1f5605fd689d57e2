package yolocam

// Runtime is the inference engine the detector runs the network on.  It
// accepts a single float32 input tensor shaped [1, 3, H, W] normalized to
// [0, 1] and returns a single output tensor shaped [1, 4+C, N].
//
// A Runtime is not required to be safe for concurrent Inference calls, the
// detector makes at most one call at a time.
type Runtime interface {
	// InputShape returns the shape of the model input tensor.  Dimensions the
	// model leaves dynamic are reported as -1
	InputShape() Shape
	// Inference runs the model on the given input and returns its output
	Inference(input *Tensor) (*Tensor, error)
	// Close unloads the model and releases the engine resources
	Close() error
}
