// Package geom maps detection canvases back to the sonar's polar geometry.
//
// A canvas is never interpreted on its own: every detector declares the
// Transform (transpose, flips, rotations, resizes, letterbox) that took the
// beam-major ping grid to the pixels it searched. The mapper inverts that
// exact chain to recover a beam and a range fraction, looks the bearing up
// in the ping's table and returns metres with X to starboard and Y forward.
//
// Dependency rule: geom depends on nothing above the standard library, so
// every layer may import it.
package geom
