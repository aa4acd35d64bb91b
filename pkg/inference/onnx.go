package inference

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/menta2k/image-labeler/pkg/processing"
)

var envMu sync.Mutex

// InitRuntime points onnxruntime_go at the shared library and initializes the
// process-wide environment once.
func InitRuntime(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// ONNXScorer runs an ONNX tagger model through ONNX Runtime
type ONNXScorer struct {
	session    *ort.DynamicAdvancedSession
	inputShape []int64
	outputLen  int
	mu         sync.Mutex
}

// NewONNXScorer opens modelPath, reading the declared input and output shapes.
// labels is used when the output width is dynamic.
func NewONNXScorer(modelPath string, labels int) (*ONNXScorer, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("model declares no inputs or outputs")
	}

	inShape := append([]int64(nil), inputs[0].Dimensions...)
	outDims := outputs[0].Dimensions
	outputLen := labels
	if len(outDims) > 0 && outDims[len(outDims)-1] > 0 {
		outputLen = int(outDims[len(outDims)-1])
	}
	if outputLen <= 0 {
		return nil, fmt.Errorf("cannot determine output width from %v", outDims)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &ONNXScorer{session: session, inputShape: inShape, outputLen: outputLen}, nil
}

// InputShape returns the declared input shape
func (s *ONNXScorer) InputShape() []int64 {
	return append([]int64(nil), s.inputShape...)
}

// Score runs one forward pass
func (s *ONNXScorer) Score(t processing.Tensor) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input, err := ort.NewTensor(ort.NewShape(t.Shape()...), t.Data)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(s.outputLen)))
	if err != nil {
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer output.Destroy()

	if err := s.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	return append([]float32(nil), output.GetData()...), nil
}

// Close destroys the session
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
