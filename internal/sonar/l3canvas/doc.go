// Package l3canvas owns Layer 3 (Canvas) of the sonar data model.
//
// Responsibilities: turning a decoded ping grid into the 8-bit image a
// detector searches (reorient, resize, blur), the letterboxed model input
// for neural inference, and canvas-wide statistics.
// Key types: Canvas.
//
// Dependency rule: L3 may depend on L1-L2 and geom, but never on L4+.
package l3canvas
