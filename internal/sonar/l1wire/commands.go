package l1wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

/*
Simple fire message (53 bytes):

	offset size field
	0      16   header (msg id 0x15, version 1)
	16     1    master mode (1 = 750 kHz wide, 2 = 1.2/1.5 MHz narrow)
	17     1    ping rate
	18     1    network speed limit (0xff = unlimited)
	19     1    gamma correction
	20     1    flags
	21     8    range (metres when FIRE_FLAG_RANGE_METRES is set)
	29     8    gain percent
	37     8    speed of sound (m/s, 0 = derive from salinity)
	45     8    salinity (ppt, 0 = fresh water)

The same 53-byte block opens every simple ping result; version 2 results
extend it to 89 bytes with an extended flags word and reserved space.

User config message (28 bytes): header (msg id 0x55) + ip addr u32 +
ip mask u32 + dhcp enable u32. An ip addr of 0 requests a read.
*/
const (
	FIRE_MESSAGE_SIZE        = 53
	FIRE2_MESSAGE_SIZE       = 89
	USER_CONFIG_MESSAGE_SIZE = 28

	FIRE_FLAG_RANGE_METRES = 0x01
	FIRE_FLAG_16BIT_DATA   = 0x02
	FIRE_FLAG_SEND_GAINS   = 0x04
	FIRE_FLAG_SIMPLE       = 0x08
	FIRE_FLAG_GAIN_ASSIST  = 0x10
	FIRE_FLAG_512_BEAMS    = 0x40

	SALINITY_FRESH = 0.0
	SALINITY_SALT  = 35.0
)

// PingRate values understood by the device.
type PingRate uint8

const (
	PingRateNormal  PingRate = 0 // 10 Hz
	PingRateHigh    PingRate = 1 // 15 Hz
	PingRateHighest PingRate = 2 // 40 Hz
	PingRateLow     PingRate = 3 // 5 Hz
	PingRateLowest  PingRate = 4 // 2 Hz
	PingRateStandby PingRate = 5
)

// FireCommand is the simple fire request. It doubles as the keep-alive:
// the client re-sends it after every ping.
type FireCommand struct {
	MasterMode   uint8
	PingRate     PingRate
	NetworkSpeed uint8
	Gamma        uint8
	Range        float64
	Gain         float64
	SpeedOfSound float64
	Salinity     float64
	GainAssist   bool
	Use512Beams  bool
}

// DefaultFireCommand mirrors the settings the device client used at start-up.
func DefaultFireCommand() FireCommand {
	return FireCommand{
		MasterMode:   1,
		PingRate:     PingRateHigh,
		NetworkSpeed: 0xff,
		Gamma:        150,
		Range:        10,
		Gain:         60,
		Salinity:     SALINITY_FRESH,
		GainAssist:   true,
		Use512Beams:  true,
	}
}

// Flags returns the flags byte the command is sent with.
func (c FireCommand) Flags() uint8 {
	flags := uint8(FIRE_FLAG_RANGE_METRES | FIRE_FLAG_SIMPLE)
	if c.GainAssist {
		flags |= FIRE_FLAG_GAIN_ASSIST
	}
	if c.Use512Beams {
		flags |= FIRE_FLAG_512_BEAMS
	}
	return flags
}

// Validate rejects values the device would misinterpret.
func (c FireCommand) Validate() error {
	if c.MasterMode != 1 && c.MasterMode != 2 {
		return fmt.Errorf("master mode must be 1 or 2, got %d", c.MasterMode)
	}
	if c.PingRate > PingRateStandby {
		return fmt.Errorf("unknown ping rate %d", c.PingRate)
	}
	if !(c.Range > 0) || math.IsInf(c.Range, 0) {
		return fmt.Errorf("range must be positive, got %v", c.Range)
	}
	if c.Gain < 0 || c.Gain > 100 || math.IsNaN(c.Gain) {
		return fmt.Errorf("gain must be between 0 and 100, got %v", c.Gain)
	}
	if c.SpeedOfSound < 0 || math.IsNaN(c.SpeedOfSound) {
		return fmt.Errorf("speed of sound must be non-negative, got %v", c.SpeedOfSound)
	}
	if c.Salinity < 0 || c.Salinity > 50 || math.IsNaN(c.Salinity) {
		return fmt.Errorf("salinity must be between 0 and 50 ppt, got %v", c.Salinity)
	}
	return nil
}

// Encode returns the 53-byte wire form.
func (c FireCommand) Encode() []byte {
	b := make([]byte, FIRE_MESSAGE_SIZE)
	PutHeader(b, Header{
		MsgID:       MsgSimpleFire,
		MsgVersion:  1,
		PayloadSize: FIRE_MESSAGE_SIZE - HEADER_SIZE,
	})
	b[16] = c.MasterMode
	b[17] = uint8(c.PingRate)
	b[18] = c.NetworkSpeed
	b[19] = c.Gamma
	b[20] = c.Flags()
	putFloat64(b[21:], c.Range)
	putFloat64(b[29:], c.Gain)
	putFloat64(b[37:], c.SpeedOfSound)
	putFloat64(b[45:], c.Salinity)
	return b
}

// FireFields is the fire block echoed at the start of every ping result.
type FireFields struct {
	MasterMode   uint8
	PingRate     PingRate
	NetworkSpeed uint8
	Gamma        uint8
	Flags        uint8
	Range        float64
	Gain         float64
	SpeedOfSound float64
	Salinity     float64
}

// ParseFireFields decodes the fire block from a message starting at b[0]
// (header included). b must hold at least FIRE_MESSAGE_SIZE bytes.
func ParseFireFields(b []byte) (FireFields, error) {
	if len(b) < FIRE_MESSAGE_SIZE {
		return FireFields{}, fmt.Errorf("fire block needs %d bytes, have %d", FIRE_MESSAGE_SIZE, len(b))
	}
	return FireFields{
		MasterMode:   b[16],
		PingRate:     PingRate(b[17]),
		NetworkSpeed: b[18],
		Gamma:        b[19],
		Flags:        b[20],
		Range:        getFloat64(b[21:]),
		Gain:         getFloat64(b[29:]),
		SpeedOfSound: getFloat64(b[37:]),
		Salinity:     getFloat64(b[45:]),
	}, nil
}

// UserConfigCommand writes (or, with IPAddr 0, requests) the network config.
type UserConfigCommand struct {
	IPAddr uint32
	IPMask uint32
	DHCP   bool
}

// Encode returns the 28-byte wire form.
func (c UserConfigCommand) Encode() []byte {
	b := make([]byte, USER_CONFIG_MESSAGE_SIZE)
	PutHeader(b, Header{
		MsgID:       MsgUserConfig,
		PayloadSize: USER_CONFIG_MESSAGE_SIZE - HEADER_SIZE,
	})
	binary.LittleEndian.PutUint32(b[16:], c.IPAddr)
	binary.LittleEndian.PutUint32(b[20:], c.IPMask)
	if c.DHCP {
		binary.LittleEndian.PutUint32(b[24:], 1)
	}
	return b
}

// RequestUserConfig returns the message that asks the device for its
// current network config.
func RequestUserConfig() []byte {
	return UserConfigCommand{}.Encode()
}

// KeepAlive returns the bare keep-alive header. It carries no payload.
func KeepAlive() []byte {
	b := make([]byte, HEADER_SIZE)
	PutHeader(b, Header{MsgID: MsgKeepAlive})
	return b
}

func putFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

func getFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
