package l2pings

import "github.com/banshee-data/sonar.report/internal/sonar/l1wire"

/*
Ping result layouts. All offsets are from the start of the message (header
included), little-endian, packed. Each layout is a fixed prefix, then the
bearing table (nBeams x int16) immediately after the prefix, then the image
at imageOffset.

Simple v1 (msg 0x23, version 1), 122 bytes:
  0   53  simple fire block (l1wire.FIRE_MESSAGE_SIZE)
  53  4   ping id            57  4   status
  61  8   frequency          69  8   temperature
  77  8   pressure           85  8   speed of sound used
  93  4   ping start time (ms, u32)
  97  1   data size (0 = 8 bit, 1 = 16 bit)
  98  8   range resolution (m)
  106 2   n ranges           108 2   n beams
  110 4   image offset       114 4   image size
  118 4   message size

Simple v2 (msg 0x23, version 2), 202 bytes:
  0   89  simple fire 2 block (fire block + ext flags u32 + 8 x u32 reserved)
  89  4   ping id            93  4   status
  97  8   frequency          105 8   temperature
  113 8   pressure           121 8   heading
  129 8   pitch              137 8   roll
  145 8   speed of sound used
  153 8   ping start time (s, f64)
  161 1   data size
  162 8   range resolution
  170 2   n ranges           172 2   n beams
  174 16  spare (4 x u32)
  190 4   image offset       194 4   image size
  198 4   message size

Full (msg 0x22), 256 bytes: the v2 layout above, then
  202 8   gain applied       210 8   tx pulse length (s)
  218 8   rx gain (dB)       226 8   beam width (deg)
  234 8   range start (m)
  242 4   device serial      246 4   firmware version
  250 6   reserved
*/
const (
	V1_PREFIX_SIZE   = 122
	V2_PREFIX_SIZE   = 202
	FULL_PREFIX_SIZE = 256

	BEARING_SIZE = 2

	// v1 offsets
	V1_PING_ID          = l1wire.FIRE_MESSAGE_SIZE
	V1_STATUS           = 57
	V1_FREQUENCY        = 61
	V1_TEMPERATURE      = 69
	V1_PRESSURE         = 77
	V1_SPEED_OF_SOUND   = 85
	V1_PING_START       = 93
	V1_DATA_SIZE        = 97
	V1_RANGE_RESOLUTION = 98
	V1_N_RANGES         = 106
	V1_N_BEAMS          = 108
	V1_IMAGE_OFFSET     = 110
	V1_IMAGE_SIZE       = 114
	V1_MESSAGE_SIZE     = 118

	// v2 and full offsets
	V2_EXT_FLAGS        = l1wire.FIRE_MESSAGE_SIZE
	V2_PING_ID          = l1wire.FIRE2_MESSAGE_SIZE
	V2_STATUS           = 93
	V2_FREQUENCY        = 97
	V2_TEMPERATURE      = 105
	V2_PRESSURE         = 113
	V2_HEADING          = 121
	V2_PITCH            = 129
	V2_ROLL             = 137
	V2_SPEED_OF_SOUND   = 145
	V2_PING_START       = 153
	V2_DATA_SIZE        = 161
	V2_RANGE_RESOLUTION = 162
	V2_N_RANGES         = 170
	V2_N_BEAMS          = 172
	V2_IMAGE_OFFSET     = 190
	V2_IMAGE_SIZE       = 194
	V2_MESSAGE_SIZE     = 198

	// full-only offsets
	FULL_GAIN_APPLIED     = 202
	FULL_TX_PULSE_LENGTH  = 210
	FULL_RX_GAIN          = 218
	FULL_BEAM_WIDTH       = 226
	FULL_RANGE_START      = 234
	FULL_DEVICE_SERIAL    = 242
	FULL_FIRMWARE_VERSION = 246

	DATA_SIZE_8BIT  = 0
	DATA_SIZE_16BIT = 1
)

// prefixSize returns the fixed prefix length for a variant.
func prefixSize(v Variant) int {
	switch v {
	case VariantV2Simple:
		return V2_PREFIX_SIZE
	case VariantFull:
		return FULL_PREFIX_SIZE
	default:
		return V1_PREFIX_SIZE
	}
}
