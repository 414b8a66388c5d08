// Package l5neural owns Layer 5 (Neural) of the sonar data model.
//
// Responsibilities: turning a raw detector tensor into canvas boxes,
// non-maximum suppression, and guarding the inference engine so that a
// failing model switches the neural path off instead of taking the process
// down.
// Key types: Tensor, Layout, Config, Guard, Detector.
//
// The model itself is external. Anything that satisfies Engine can feed
// Postprocess; ONNXEngine (build tag gocv) is the bundled one.
//
// Dependency rule: L5 may depend on L1-L4 and geom.
package l5neural
