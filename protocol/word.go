package protocol

import "errors"

var (
	ErrBufferTooSmall = errors.New("buffer too small for word")
)

// EncodeWord writes v as a 2-byte little-endian word. Values above 0xFFFF
// are truncated to their low 16 bits.
func EncodeWord(output OutputBuffer, v uint32) {
	output.Output([]byte{byte(v), byte(v >> 8)})
}

// AppendWord appends v as a 2-byte little-endian word
func AppendWord(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8))
}

// DecodeWord decodes a little-endian word from the data slice
// The data slice is advanced past the consumed bytes
func DecodeWord(data *[]byte) (uint16, error) {
	if len(*data) < WordSize {
		return 0, ErrBufferTooSmall
	}
	v := uint16((*data)[0]) | uint16((*data)[1])<<8
	*data = (*data)[WordSize:]
	return v, nil
}
