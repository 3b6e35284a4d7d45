// Package ss58 implements the SS58 address format used to encode 32-byte
// account keys: base58 over a network prefix, the public key, and a
// blake2b-512 checksum of the two.
package ss58

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// checksumPreimage is prepended to the payload before hashing
var checksumPreimage = []byte("SS58PRE")

const (
	// PublicKeyLength is the account key length carried by an address
	PublicKeyLength = 32

	checksumLength = 2
	maxPrefix      = 0x3fff
)

// Encode renders a 32-byte public key as an SS58 address under the given
// network prefix
func Encode(prefix uint16, pubKey []byte) (string, error) {
	if len(pubKey) != PublicKeyLength {
		return "", fmt.Errorf("public key must be %d bytes, got %d", PublicKeyLength, len(pubKey))
	}
	if prefix > maxPrefix {
		return "", fmt.Errorf("network prefix %d out of range", prefix)
	}

	var payload []byte
	if prefix < 64 {
		payload = append(payload, byte(prefix))
	} else {
		// Two-byte prefix form: 14 prefix bits spread across two bytes
		// with the 0b01 marker in the first byte's upper bits.
		payload = append(payload,
			0x40|byte((prefix&0x00fc)>>2),
			byte(prefix>>8)|byte((prefix&0x0003)<<6),
		)
	}
	payload = append(payload, pubKey...)
	payload = append(payload, checksum(payload)...)

	return base58.Encode(payload), nil
}

// Decode parses an SS58 address, returning the network prefix and the
// 32-byte public key it wraps
func Decode(address string) (uint16, []byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid base58 address: %w", err)
	}
	if len(raw) < 1+PublicKeyLength+checksumLength {
		return 0, nil, fmt.Errorf("address too short: %d bytes", len(raw))
	}

	var prefix uint16
	var prefixLen int
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
		prefixLen = 1
	case raw[0] < 128:
		if len(raw) < 2+PublicKeyLength+checksumLength {
			return 0, nil, fmt.Errorf("address too short for two-byte prefix")
		}
		lower := uint16(raw[0]&0x3f) << 2
		upper := uint16(raw[1])
		prefix = lower | (upper&0xc0)>>6 | (upper&0x3f)<<8
		prefixLen = 2
	default:
		return 0, nil, fmt.Errorf("reserved address prefix byte 0x%02x", raw[0])
	}

	body := raw[:len(raw)-checksumLength]
	if !bytes.Equal(raw[len(raw)-checksumLength:], checksum(body)) {
		return 0, nil, fmt.Errorf("address checksum mismatch")
	}

	pubKey := body[prefixLen:]
	if len(pubKey) != PublicKeyLength {
		return 0, nil, fmt.Errorf("unexpected public key length %d", len(pubKey))
	}
	return prefix, pubKey, nil
}

func checksum(payload []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(checksumPreimage)
	h.Write(payload)
	return h.Sum(nil)[:checksumLength]
}
