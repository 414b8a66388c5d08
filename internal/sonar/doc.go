// Package sonar holds the types shared by every layer of the sonar data
// model and documents how the layers fit together.
//
// Layers, leaf first:
//
//	L1 wire     (l1wire)   byte stream -> RawFrame, device command encoding
//	L2 pings    (l2pings)  RawFrame -> PingRecord / KeepAlive / UserConfig
//	L3 canvas   (l3canvas) PingRecord -> oriented, resized detection canvas
//	L4 detect   (l4detect) statistical dual-threshold blob detector
//	L5 neural   (l5neural) inference tensor -> candidates, NMS, engine guard
//
// Cross-cutting: geom (image transforms and the canvas -> world mapper),
// network (transport read loop), pipeline (L3-L5 plus geom per ping) and
// monitor (HTTP/websocket/gRPC surfaces).
//
// Dependency rule: a layer may depend on lower layers and geom, never on a
// higher layer. No SQL is allowed under internal/sonar.
package sonar
