package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"io"
)

// RandBytes fills data with random bytes from the CSPRNG
func RandBytes(data []byte) {
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		panic(err)
	}
}

// RandUint32 returns a random 32-bit unsigned integer from the CSPRNG
func RandUint32() uint32 {
	b := make([]byte, 4)
	RandBytes(b)
	return binary.BigEndian.Uint32(b)
}
