package yolocam

import (
	"encoding/binary"
	"fmt"
	"github.com/x448/float16"
)

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// Float16ToFloat32 converts a little endian buffer of IEEE 754 half precision
// values, as produced by fp16 exported models, into float32 values
func Float16ToFloat32(buf []byte) ([]float32, error) {

	if len(buf)%2 != 0 {
		return nil, fmt.Errorf("float16 buffer has odd length %d", len(buf))
	}

	out := make([]float32, len(buf)/2)

	for i := range out {
		out[i] = f16LookupTable[binary.LittleEndian.Uint16(buf[i*2:])]
	}

	return out, nil
}
