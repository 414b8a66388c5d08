package l2pings

import (
	"fmt"
	"math"

	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
)

// Variant tags which ping-result layout a record was decoded from.
type Variant int

const (
	VariantV1Simple Variant = iota + 1
	VariantV2Simple
	VariantFull
)

func (v Variant) String() string {
	switch v {
	case VariantV1Simple:
		return "v1_simple"
	case VariantV2Simple:
		return "v2_simple"
	case VariantFull:
		return "full"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Message is anything Decode can produce.
type Message interface {
	isMessage()
}

// KeepAlive is the payload-free handshake message.
type KeepAlive struct {
	SrcDeviceID uint16
}

// UserConfig is the device network configuration reply.
type UserConfig struct {
	IPAddr uint32
	IPMask uint32
	DHCP   bool
}

// Attitude is reported by v2 simple and full pings.
type Attitude struct {
	Heading float64
	Pitch   float64
	Roll    float64
}

// FullExtension holds the fields only the full ping result carries.
type FullExtension struct {
	GainApplied     float64
	TxPulseLength   float64
	RxGainDB        float64
	BeamWidthDeg    float64
	RangeStart      float64
	DeviceSerial    uint32
	FirmwareVersion uint32
}

// PingRecord is one decoded ping. Intensity is beam-major: beam b occupies
// Intensity[b*Ranges : (b+1)*Ranges], nearest sample first. Bearings holds
// one angle per beam in hundredths of a degree, as sent by the device.
//
// A record is owned by whoever decoded it. Copy it before handing it to
// another goroutine that may outlive the next decode.
type PingRecord struct {
	Variant Variant
	Version int
	Fire    l1wire.FireFields

	PingID        uint32
	Status        uint32
	Frequency     float64
	Temperature   float64
	Pressure      float64
	SpeedOfSound  float64
	PingStartTime float64

	SampleBits      int
	RangeResolution float64
	Beams           int
	Ranges          int

	Bearings  []int16
	Intensity []uint8

	Attitude *Attitude      // v2 simple and full only
	Extended *FullExtension // full only
}

func (*PingRecord) isMessage() {}
func (KeepAlive) isMessage()   {}
func (UserConfig) isMessage()  {}

// MaxRange is the range covered by the last sample, in metres.
func (r *PingRecord) MaxRange() float64 {
	return float64(r.Ranges) * r.RangeResolution
}

// Beam returns the samples for beam b without copying.
func (r *PingRecord) Beam(b int) []uint8 {
	return r.Intensity[b*r.Ranges : (b+1)*r.Ranges]
}

// At returns the sample for beam b and range index i.
func (r *PingRecord) At(b, i int) uint8 {
	return r.Intensity[b*r.Ranges+i]
}

// BearingRadians converts the table entry for beam b (clamped) to radians.
func (r *PingRecord) BearingRadians(b int) float64 {
	if b < 0 {
		b = 0
	}
	if b >= len(r.Bearings) {
		b = len(r.Bearings) - 1
	}
	return float64(r.Bearings[b]) * 0.01 * math.Pi / 180.0
}

// Clone returns a deep copy.
func (r *PingRecord) Clone() *PingRecord {
	c := *r
	c.Bearings = append([]int16(nil), r.Bearings...)
	c.Intensity = append([]uint8(nil), r.Intensity...)
	if r.Attitude != nil {
		a := *r.Attitude
		c.Attitude = &a
	}
	if r.Extended != nil {
		e := *r.Extended
		c.Extended = &e
	}
	return &c
}
