package l2pings

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
)

// Encode writes rec in the layout of rec.Variant, with the bearing table
// right after the prefix and the image right after the bearing table. It is
// the inverse of DecodePing and is used for replay fixtures and the dev
// simulator.
func Encode(rec *PingRecord) ([]byte, error) {
	if rec.Beams <= 0 || rec.Ranges <= 0 {
		return nil, fmt.Errorf("%w: %d beams x %d ranges", ErrBadGeometry, rec.Beams, rec.Ranges)
	}
	if len(rec.Bearings) != rec.Beams {
		return nil, fmt.Errorf("%w: %d bearings for %d beams", ErrBadGeometry, len(rec.Bearings), rec.Beams)
	}
	if len(rec.Intensity) != rec.Beams*rec.Ranges {
		return nil, fmt.Errorf("%w: %d samples for %dx%d", ErrBadGeometry, len(rec.Intensity), rec.Beams, rec.Ranges)
	}

	bytesPerSample := 1
	dataSize := uint8(DATA_SIZE_8BIT)
	if rec.SampleBits == 16 {
		bytesPerSample = 2
		dataSize = DATA_SIZE_16BIT
	}

	prefix := prefixSize(rec.Variant)
	imageOffset := prefix + rec.Beams*BEARING_SIZE
	imageSize := rec.Beams * rec.Ranges * bytesPerSample
	total := imageOffset + imageSize
	b := make([]byte, total)

	msgID := l1wire.MsgSimplePingResult
	version := uint16(1)
	switch rec.Variant {
	case VariantV2Simple:
		version = 2
	case VariantFull:
		msgID = l1wire.MsgPingResult
		version = 2
	}
	l1wire.PutHeader(b, l1wire.Header{
		MsgID:       msgID,
		MsgVersion:  version,
		PayloadSize: uint32(total - l1wire.HEADER_SIZE),
	})

	fire := rec.Fire
	b[16] = fire.MasterMode
	b[17] = uint8(fire.PingRate)
	b[18] = fire.NetworkSpeed
	b[19] = fire.Gamma
	b[20] = fire.Flags
	putF64(b, 21, fire.Range)
	putF64(b, 29, fire.Gain)
	putF64(b, 37, fire.SpeedOfSound)
	putF64(b, 45, fire.Salinity)

	if rec.Variant == VariantV1Simple {
		binary.LittleEndian.PutUint32(b[V1_PING_ID:], rec.PingID)
		binary.LittleEndian.PutUint32(b[V1_STATUS:], rec.Status)
		putF64(b, V1_FREQUENCY, rec.Frequency)
		putF64(b, V1_TEMPERATURE, rec.Temperature)
		putF64(b, V1_PRESSURE, rec.Pressure)
		putF64(b, V1_SPEED_OF_SOUND, rec.SpeedOfSound)
		binary.LittleEndian.PutUint32(b[V1_PING_START:], uint32(math.Round(rec.PingStartTime*1000)))
		b[V1_DATA_SIZE] = dataSize
		putF64(b, V1_RANGE_RESOLUTION, rec.RangeResolution)
		binary.LittleEndian.PutUint16(b[V1_N_RANGES:], uint16(rec.Ranges))
		binary.LittleEndian.PutUint16(b[V1_N_BEAMS:], uint16(rec.Beams))
		binary.LittleEndian.PutUint32(b[V1_IMAGE_OFFSET:], uint32(imageOffset))
		binary.LittleEndian.PutUint32(b[V1_IMAGE_SIZE:], uint32(imageSize))
		binary.LittleEndian.PutUint32(b[V1_MESSAGE_SIZE:], uint32(total))
	} else {
		binary.LittleEndian.PutUint32(b[V2_PING_ID:], rec.PingID)
		binary.LittleEndian.PutUint32(b[V2_STATUS:], rec.Status)
		putF64(b, V2_FREQUENCY, rec.Frequency)
		putF64(b, V2_TEMPERATURE, rec.Temperature)
		putF64(b, V2_PRESSURE, rec.Pressure)
		if rec.Attitude != nil {
			putF64(b, V2_HEADING, rec.Attitude.Heading)
			putF64(b, V2_PITCH, rec.Attitude.Pitch)
			putF64(b, V2_ROLL, rec.Attitude.Roll)
		}
		putF64(b, V2_SPEED_OF_SOUND, rec.SpeedOfSound)
		putF64(b, V2_PING_START, rec.PingStartTime)
		b[V2_DATA_SIZE] = dataSize
		putF64(b, V2_RANGE_RESOLUTION, rec.RangeResolution)
		binary.LittleEndian.PutUint16(b[V2_N_RANGES:], uint16(rec.Ranges))
		binary.LittleEndian.PutUint16(b[V2_N_BEAMS:], uint16(rec.Beams))
		binary.LittleEndian.PutUint32(b[V2_IMAGE_OFFSET:], uint32(imageOffset))
		binary.LittleEndian.PutUint32(b[V2_IMAGE_SIZE:], uint32(imageSize))
		binary.LittleEndian.PutUint32(b[V2_MESSAGE_SIZE:], uint32(total))
	}
	if rec.Variant == VariantFull && rec.Extended != nil {
		e := rec.Extended
		putF64(b, FULL_GAIN_APPLIED, e.GainApplied)
		putF64(b, FULL_TX_PULSE_LENGTH, e.TxPulseLength)
		putF64(b, FULL_RX_GAIN, e.RxGainDB)
		putF64(b, FULL_BEAM_WIDTH, e.BeamWidthDeg)
		putF64(b, FULL_RANGE_START, e.RangeStart)
		binary.LittleEndian.PutUint32(b[FULL_DEVICE_SERIAL:], e.DeviceSerial)
		binary.LittleEndian.PutUint32(b[FULL_FIRMWARE_VERSION:], e.FirmwareVersion)
	}

	for i, brg := range rec.Bearings {
		binary.LittleEndian.PutUint16(b[prefix+i*BEARING_SIZE:], uint16(brg))
	}
	img := b[imageOffset:]
	if bytesPerSample == 1 {
		copy(img, rec.Intensity)
	} else {
		for i, v := range rec.Intensity {
			binary.LittleEndian.PutUint16(img[2*i:], uint16(v)<<8|uint16(v))
		}
	}
	return b, nil
}

func putF64(b []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(b[off:], math.Float64bits(v))
}
