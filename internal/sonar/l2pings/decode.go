package l2pings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
)

var (
	// ErrTruncated is returned when a frame is shorter than its fixed prefix.
	ErrTruncated = errors.New("ping result truncated")
	// ErrSizeMismatch is returned when header + payload size does not equal
	// image offset + image size.
	ErrSizeMismatch = errors.New("ping result size mismatch")
	// ErrBadGeometry is returned for zero beams/ranges, a misplaced bearing
	// table, an undersized image or an unsupported sample width.
	ErrBadGeometry = errors.New("ping result geometry invalid")
)

// Decode turns one frame into a Message. Unknown message types return
// (nil, nil): they are ignored, not errors. A failed decode returns an error
// and no partial record.
func Decode(frame l1wire.RawFrame) (Message, error) {
	switch frame.Header.MsgID {
	case l1wire.MsgSimplePingResult:
		if frame.Header.MsgVersion == 2 {
			return DecodePing(frame.Bytes, VariantV2Simple)
		}
		return DecodePing(frame.Bytes, VariantV1Simple)
	case l1wire.MsgPingResult:
		return DecodePing(frame.Bytes, VariantFull)
	case l1wire.MsgKeepAlive:
		return KeepAlive{SrcDeviceID: frame.Header.SrcDeviceID}, nil
	case l1wire.MsgUserConfig:
		return decodeUserConfig(frame.Bytes)
	default:
		tracef("ignoring message id 0x%02x (%d bytes)", frame.Header.MsgID, len(frame.Bytes))
		return nil, nil
	}
}

// DecodePing parses a ping result message of the given variant. b holds the
// whole message, header included.
func DecodePing(b []byte, v Variant) (*PingRecord, error) {
	prefix := prefixSize(v)
	if len(b) < prefix {
		return nil, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrTruncated, v, prefix, len(b))
	}
	h, err := l1wire.ParseHeader(b)
	if err != nil {
		return nil, err
	}

	var (
		dataSize             uint8
		nRanges, nBeams      int
		imageOffset, imgSize uint32
	)
	if v == VariantV1Simple {
		dataSize = b[V1_DATA_SIZE]
		nRanges = int(binary.LittleEndian.Uint16(b[V1_N_RANGES:]))
		nBeams = int(binary.LittleEndian.Uint16(b[V1_N_BEAMS:]))
		imageOffset = binary.LittleEndian.Uint32(b[V1_IMAGE_OFFSET:])
		imgSize = binary.LittleEndian.Uint32(b[V1_IMAGE_SIZE:])
	} else {
		dataSize = b[V2_DATA_SIZE]
		nRanges = int(binary.LittleEndian.Uint16(b[V2_N_RANGES:]))
		nBeams = int(binary.LittleEndian.Uint16(b[V2_N_BEAMS:]))
		imageOffset = binary.LittleEndian.Uint32(b[V2_IMAGE_OFFSET:])
		imgSize = binary.LittleEndian.Uint32(b[V2_IMAGE_SIZE:])
	}

	// The device guarantees the image is the tail of the message.
	if uint64(l1wire.HEADER_SIZE)+uint64(h.PayloadSize) != uint64(imageOffset)+uint64(imgSize) {
		return nil, fmt.Errorf("%w: header %d + payload %d != offset %d + image %d",
			ErrSizeMismatch, l1wire.HEADER_SIZE, h.PayloadSize, imageOffset, imgSize)
	}
	if uint64(imageOffset)+uint64(imgSize) > uint64(len(b)) {
		return nil, fmt.Errorf("%w: image ends at %d, frame is %d bytes",
			ErrTruncated, uint64(imageOffset)+uint64(imgSize), len(b))
	}
	if nBeams <= 0 || nRanges <= 0 {
		return nil, fmt.Errorf("%w: %d beams x %d ranges", ErrBadGeometry, nBeams, nRanges)
	}

	var bytesPerSample int
	switch dataSize {
	case DATA_SIZE_8BIT:
		bytesPerSample = 1
	case DATA_SIZE_16BIT:
		bytesPerSample = 2
	default:
		return nil, fmt.Errorf("%w: unsupported data size %d", ErrBadGeometry, dataSize)
	}

	bearingEnd := prefix + nBeams*BEARING_SIZE
	if bearingEnd > int(imageOffset) {
		return nil, fmt.Errorf("%w: bearing table ends at %d past image offset %d", ErrBadGeometry, bearingEnd, imageOffset)
	}
	need := nBeams * nRanges * bytesPerSample
	if int(imgSize) < need {
		return nil, fmt.Errorf("%w: image %d bytes, need %d", ErrBadGeometry, imgSize, need)
	}

	fire, err := l1wire.ParseFireFields(b)
	if err != nil {
		return nil, err
	}

	rec := &PingRecord{
		Variant:    v,
		Version:    1,
		Fire:       fire,
		SampleBits: 8 * bytesPerSample,
		Beams:      nBeams,
		Ranges:     nRanges,
	}
	if v == VariantV1Simple {
		rec.PingID = binary.LittleEndian.Uint32(b[V1_PING_ID:])
		rec.Status = binary.LittleEndian.Uint32(b[V1_STATUS:])
		rec.Frequency = f64(b, V1_FREQUENCY)
		rec.Temperature = f64(b, V1_TEMPERATURE)
		rec.Pressure = f64(b, V1_PRESSURE)
		rec.SpeedOfSound = f64(b, V1_SPEED_OF_SOUND)
		rec.PingStartTime = float64(binary.LittleEndian.Uint32(b[V1_PING_START:])) / 1000.0
		rec.RangeResolution = f64(b, V1_RANGE_RESOLUTION)
	} else {
		rec.Version = 2
		rec.PingID = binary.LittleEndian.Uint32(b[V2_PING_ID:])
		rec.Status = binary.LittleEndian.Uint32(b[V2_STATUS:])
		rec.Frequency = f64(b, V2_FREQUENCY)
		rec.Temperature = f64(b, V2_TEMPERATURE)
		rec.Pressure = f64(b, V2_PRESSURE)
		rec.SpeedOfSound = f64(b, V2_SPEED_OF_SOUND)
		rec.PingStartTime = f64(b, V2_PING_START)
		rec.RangeResolution = f64(b, V2_RANGE_RESOLUTION)
		rec.Attitude = &Attitude{
			Heading: f64(b, V2_HEADING),
			Pitch:   f64(b, V2_PITCH),
			Roll:    f64(b, V2_ROLL),
		}
	}
	if v == VariantFull {
		rec.Extended = &FullExtension{
			GainApplied:     f64(b, FULL_GAIN_APPLIED),
			TxPulseLength:   f64(b, FULL_TX_PULSE_LENGTH),
			RxGainDB:        f64(b, FULL_RX_GAIN),
			BeamWidthDeg:    f64(b, FULL_BEAM_WIDTH),
			RangeStart:      f64(b, FULL_RANGE_START),
			DeviceSerial:    binary.LittleEndian.Uint32(b[FULL_DEVICE_SERIAL:]),
			FirmwareVersion: binary.LittleEndian.Uint32(b[FULL_FIRMWARE_VERSION:]),
		}
	}
	if !(rec.RangeResolution > 0) || math.IsInf(rec.RangeResolution, 0) {
		return nil, fmt.Errorf("%w: range resolution %v", ErrBadGeometry, rec.RangeResolution)
	}

	rec.Bearings = make([]int16, nBeams)
	for i := range rec.Bearings {
		rec.Bearings[i] = int16(binary.LittleEndian.Uint16(b[prefix+i*BEARING_SIZE:]))
	}

	img := b[imageOffset : int(imageOffset)+need]
	if bytesPerSample == 1 {
		rec.Intensity = append([]uint8(nil), img...)
	} else {
		// Keep the high byte so every downstream canvas is 8 bit.
		rec.Intensity = make([]uint8, nBeams*nRanges)
		for i := range rec.Intensity {
			rec.Intensity[i] = uint8(binary.LittleEndian.Uint16(img[2*i:]) >> 8)
		}
	}

	return rec, nil
}

func decodeUserConfig(b []byte) (Message, error) {
	if len(b) < l1wire.USER_CONFIG_MESSAGE_SIZE {
		return nil, fmt.Errorf("%w: user config needs %d bytes, have %d", ErrTruncated, l1wire.USER_CONFIG_MESSAGE_SIZE, len(b))
	}
	return UserConfig{
		IPAddr: binary.LittleEndian.Uint32(b[16:]),
		IPMask: binary.LittleEndian.Uint32(b[20:]),
		DHCP:   binary.LittleEndian.Uint32(b[24:]) != 0,
	}, nil
}

func f64(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}
