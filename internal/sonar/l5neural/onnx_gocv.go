//go:build gocv
// +build gocv

package l5neural

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// ONNXEngine runs an ONNX detector through the OpenCV DNN module.
type ONNXEngine struct {
	mu   sync.Mutex
	net  gocv.Net
	size int
}

// NewONNXEngine loads the model at path. size is the square input side the
// model was exported with.
func NewONNXEngine(path string, size int) (*ONNXEngine, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", path)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}
	diagf("loaded %s (input %dx%d)", path, size, size)
	return &ONNXEngine{net: net, size: size}, nil
}

// Infer scales img to [0,1], swaps it to RGB and runs one forward pass.
func (e *ONNXEngine) Infer(ctx context.Context, img image.Image) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return Tensor{}, fmt.Errorf("image to mat: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(e.size, e.size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return Tensor{}, fmt.Errorf("empty network output")
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return Tensor{}, fmt.Errorf("read output: %w", err)
	}
	t := Tensor{Shape: out.Size(), Data: make([]float32, len(data))}
	copy(t.Data, data)
	return t, nil
}

// Close releases the network.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
