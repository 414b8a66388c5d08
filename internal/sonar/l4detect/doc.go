// Package l4detect owns Layer 4 (Detect) of the sonar data model.
//
// Responsibilities: the statistical dual-threshold blob detector and the
// geometry filter shared with the neural postprocessor.
// Key types: Params, Candidate, GeometryFilter.
//
// The detector needs no trained model. Acoustic highlights (hard returns)
// and shadows (occlusion) both mark an object, so the mask is the union of
// a bright and a dark threshold around the canvas mean.
//
// Dependency rule: L4 may depend on L1-L3 and geom, but never on L5.
package l4detect
