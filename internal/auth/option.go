// Copyright (c) 2026 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package auth

import (
	"encoding/binary"
)

// Protocol identifies the authentication protocol carried in the first byte
// of the option payload (RFC 3118 / RFC 3315 section 21).
type Protocol uint8

const (
	ProtocolToken          Protocol = 1
	ProtocolDelayed        Protocol = 2
	ProtocolDelayedRealm   Protocol = 3
	ProtocolReconfigureKey Protocol = 4
)

func (p Protocol) String() string {
	switch p {
	case ProtocolToken:
		return "token"
	case ProtocolDelayed:
		return "delayed"
	case ProtocolDelayedRealm:
		return "delayed-realm"
	case ProtocolReconfigureKey:
		return "reconfigure-key"
	}

	return "unknown"
}

// Algorithm identifies the keyed-hash algorithm. Only HMAC-MD5 is defined.
type Algorithm uint8

const (
	AlgorithmHMACMD5 Algorithm = 1
)

func (a Algorithm) String() string {
	if a == AlgorithmHMACMD5 {
		return "hmac-md5"
	}

	return "unknown"
}

// ReplayDetection identifies the replay detection method. Only the monotonic
// 64-bit counter is defined.
type ReplayDetection uint8

const (
	ReplayDetectionMonotonic ReplayDetection = 1
)

func (r ReplayDetection) String() string {
	if r == ReplayDetectionMonotonic {
		return "monotonic"
	}

	return "unknown"
}

const (
	// optMinLen is the fixed option prefix: protocol, algorithm and replay
	// detection method bytes followed by the 64-bit replay counter.
	optMinLen = 3 + 8

	secretIDLen = 4
	macLen      = 16

	// reconfKeyLen is the size of the key material in a reconfigure-key
	// trailer, which is always exactly subtype byte + key.
	reconfKeyLen = 16
)

// Reconfigure-key trailer subtypes.
const (
	reconfigureKeyDeliver uint8 = 1
	reconfigureKeyUse     uint8 = 2
)

// cursor is a bounds-checked reader over an option payload. Every read
// either succeeds completely or reports false without advancing past the
// end of the buffer.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) uint8() (uint8, bool) {
	if c.remaining() < 1 {
		return 0, false
	}

	v := c.buf[c.pos]
	c.pos++

	return v, true
}

func (c *cursor) uint32() (uint32, bool) {
	if c.remaining() < 4 {
		return 0, false
	}

	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4

	return v, true
}

func (c *cursor) uint64() (uint64, bool) {
	if c.remaining() < 8 {
		return 0, false
	}

	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8

	return v, true
}

func (c *cursor) bytes(n int) ([]byte, bool) {
	if n < 0 || c.remaining() < n {
		return nil, false
	}

	v := c.buf[c.pos : c.pos+n]
	c.pos += n

	return v, true
}

// option is the decoded authentication option. The trailer fields that are
// populated depend on protocol: verifier holds the raw key bytes for the
// token protocol, the received MAC for the delayed protocols and
// reconfigure-key use, and the delivered key material for reconfigure-key
// delivery. verifierOff is the verifier's offset within the outer message,
// which the MAC computation needs in order to zero it.
type option struct {
	protocol    Protocol
	algorithm   Algorithm
	rdm         ReplayDetection
	replay      uint64
	secretID    uint32
	realm       []byte
	reconfType  uint8
	verifier    []byte
	verifierOff int
}

// decodeOption parses the authentication option payload located at
// msg[off:off+length]. The payload must lie entirely within msg.
func decodeOption(msg []byte, off, length int) (option, error) {
	var o option

	if length < optMinLen {
		return o, ErrInvalidOption
	}

	if off < 0 || length > len(msg) || off > len(msg)-length {
		return o, ErrOutOfRange
	}

	c := cursor{buf: msg[off : off+length]}

	p, _ := c.uint8()
	a, _ := c.uint8()
	r, _ := c.uint8()
	replay, _ := c.uint64()

	o.protocol = Protocol(p)
	o.algorithm = Algorithm(a)
	o.rdm = ReplayDetection(r)
	o.replay = replay

	switch o.protocol {
	case ProtocolToken:
		// The rest of the payload is the key itself, compared verbatim.
		o.verifierOff = off + c.pos
		o.verifier, _ = c.bytes(c.remaining())

	case ProtocolDelayed:
		if c.remaining() != secretIDLen+macLen {
			return o, ErrInvalidOption
		}

		o.secretID, _ = c.uint32()
		o.verifierOff = off + c.pos
		o.verifier, _ = c.bytes(macLen)

	case ProtocolDelayedRealm:
		if c.remaining() < secretIDLen+macLen {
			return o, ErrInvalidOption
		}

		realmLen := c.remaining() - secretIDLen - macLen

		o.realm, _ = c.bytes(realmLen)
		o.secretID, _ = c.uint32()
		o.verifierOff = off + c.pos
		o.verifier, _ = c.bytes(macLen)

	case ProtocolReconfigureKey:
		if c.remaining() != 1+reconfKeyLen {
			return o, ErrInvalidOption
		}

		o.reconfType, _ = c.uint8()
		o.verifierOff = off + c.pos
		o.verifier, _ = c.bytes(reconfKeyLen)

	default:
		return o, ErrUnsupported
	}

	return o, nil
}
