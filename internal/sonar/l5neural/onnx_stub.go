//go:build !gocv
// +build !gocv

package l5neural

import (
	"context"
	"errors"
	"image"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// ONNXEngine is unavailable without the gocv build tag.
type ONNXEngine struct{}

// NewONNXEngine always fails in builds without gocv.
func NewONNXEngine(path string, size int) (*ONNXEngine, error) {
	_ = path
	_ = size
	return nil, errNoGoCV
}

// Infer always fails in builds without gocv.
func (e *ONNXEngine) Infer(ctx context.Context, img image.Image) (Tensor, error) {
	_ = ctx
	_ = img
	return Tensor{}, errNoGoCV
}

// Close is a no-op.
func (e *ONNXEngine) Close() error { return nil }
