package utils

import (
	"os"
	"time"

	uuid "github.com/satori/go.uuid"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// UUIDStr renders a raw 16-byte account identifier the way the service
// transmits it in registration responses.
func UUIDStr(uuidBytes []byte) (string, error) {
	u, err := uuid.FromBytes(uuidBytes)
	if err != nil {
		return "", err
	}
	return u.String(), err
}

// ValidUUID reports whether s parses as the canonical form the service
// issues for ACI and PNI identifiers.
func ValidUUID(s string) bool {
	_, err := uuid.FromString(s)
	return err == nil
}

func CurrentTimeMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
