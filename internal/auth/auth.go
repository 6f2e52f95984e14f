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

// Package auth implements RFC 3118 and RFC 3318 style authentication of
// DHCP and DHCPv6 messages: encoding the authentication option into
// outgoing messages and validating it on inbound ones, including replay
// protection, keyed-hash verification and the server-issued reconfigure
// key exchange.
//
// A rejected message is a normal outcome, not a failure: every error this
// package returns means "drop this message" or "send without the option",
// and callers are expected to recover at the call site.
package auth

import (
	"crypto/hmac"
	"encoding/binary"
	"errors"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv6"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidOption        = errors.New("authentication option is malformed")
	ErrOutOfRange           = errors.New("authentication option lies outside the message")
	ErrProtocolMismatch     = errors.New("authentication option does not match the configured scheme")
	ErrReplayDetected       = errors.New("replay counter did not advance")
	ErrTokenNotFound        = errors.New("no token matches the secret ID and realm")
	ErrTokenExpired         = errors.New("matching token has expired")
	ErrTokenMismatch        = errors.New("session is bound to a different token")
	ErrAuthenticationFailed = errors.New("message authentication failed")
	ErrUnsupported          = errors.New("unsupported authentication parameters")
	ErrBufferTooSmall       = errors.New("destination buffer is too small")
	ErrCounterExhausted     = errors.New("replay counter exhausted, re-keying required")
)

// Family selects the wire variant of the outer message.
type Family int

const (
	Family4 Family = 4
	Family6 Family = 6
)

// RFC 2131 fixed header offsets of the two fields that RFC 3318 section
// 5.2 requires to be zero while hashing a relayed DHCPv4 message.
const (
	hopCountOffset  = 3
	relayAddrOffset = 24
	relayAddrLen    = 4
)

// Config is the negotiated authentication configuration of one logical
// DHCP session.
type Config struct {
	Tokens          *TokenStore
	Protocol        Protocol
	Algorithm       Algorithm
	ReplayDetection ReplayDetection
	// Send indicates this side emits authenticated messages. When unset,
	// the only inbound option accepted is a reconfigure-key delivery.
	Send bool
}

// Authenticator validates and encodes authentication options for a single
// session configuration.
type Authenticator struct {
	counter ReplayCounter
	hmac    HMACFunc
	now     func() time.Time
	cfg     Config
	stats   stats
}

type AuthenticatorOption func(*Authenticator)

// WithReplayCounter replaces the replay counter generator. The default
// counter is memory-only; daemons should supply a file-backed
// MonotonicCounter so the counter survives restarts.
func WithReplayCounter(c ReplayCounter) AuthenticatorOption {
	return func(a *Authenticator) {
		a.counter = c
	}
}

// WithHMAC replaces the keyed-hash primitive.
func WithHMAC(fn HMACFunc) AuthenticatorOption {
	return func(a *Authenticator) {
		a.hmac = fn
	}
}

// WithTimeSource replaces the wall clock used for token expiry checks.
func WithTimeSource(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		a.now = now
	}
}

func NewAuthenticator(cfg Config, options ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		cfg:     cfg,
		counter: NewMonotonicCounter(""),
		hmac:    hmacMD5,
		now:     time.Now,
	}

	for _, opt := range options {
		opt(a)
	}

	return a
}

// Validate authenticates an inbound message. msg is the full outer message
// and msg[off:off+length] is the authentication option's payload within
// it. msgType is the DHCP message type (option 53 for DHCPv4, the msg-type
// byte for DHCPv6).
//
// On success the session state is bound to the returned token and its
// replay floor advances; the token is the caller's authenticated identity
// for the exchange. msg is never written to.
func (a *Authenticator) Validate(state *State, msg []byte, family Family,
	msgType uint8, off, length int) (*Token, error) {
	token, err := a.validate(state, msg, family, msgType, off, length)
	if err != nil {
		a.stats.rejected.Add(1)
		log.Debug().Err(err).Int("family", int(family)).
			Msg("Rejected inbound authentication option")

		return nil, err
	}

	a.stats.accepted.Add(1)

	return token, nil
}

func (a *Authenticator) validate(state *State, msg []byte, family Family,
	msgType uint8, off, length int) (*Token, error) {
	opt, err := decodeOption(msg, off, length)
	if err != nil {
		return nil, err
	}

	if !a.cfg.Send {
		// We never sent an authentication option, so the only thing the
		// server may legitimately deliver is a reconfigure key.
		if opt.protocol != ProtocolReconfigureKey {
			return nil, ErrProtocolMismatch
		}
	} else if opt.protocol != a.cfg.Protocol ||
		opt.algorithm != a.cfg.Algorithm ||
		opt.rdm != a.cfg.ReplayDetection {
		return nil, ErrProtocolMismatch
	}

	if state.bound != nil && opt.replay <= state.lastReplay {
		return nil, ErrReplayDetected
	}

	var token *Token

	switch opt.protocol {
	case ProtocolReconfigureKey:
		switch opt.reconfType {
		case reconfigureKeyDeliver:
			if !isAcknowledgement(family, msgType) {
				return nil, ErrInvalidOption
			}

			if state.reconf == nil {
				state.reconf = &Token{
					Protocol:        ProtocolReconfigureKey,
					Algorithm:       opt.algorithm,
					ReplayDetection: opt.rdm,
					Key:             make([]byte, reconfKeyLen),
				}
			}

			copy(state.reconf.Key, opt.verifier)

			// There is nothing to verify: this message establishes the
			// key. The caller must require that it arrived on a path
			// that was already authenticated by other means.
			return state.reconf, nil

		case reconfigureKeyUse:
			if state.reconf == nil {
				return nil, ErrTokenNotFound
			}

			token = state.reconf

		default:
			return nil, ErrInvalidOption
		}

	default:
		token = a.cfg.Tokens.Lookup(opt.secretID, opt.realm)
		if token == nil {
			return nil, ErrTokenNotFound
		}

		if token.Expired(a.now()) {
			return nil, ErrTokenExpired
		}
	}

	if state.bound != nil && state.bound != token {
		return nil, ErrTokenMismatch
	}

	if opt.protocol == ProtocolToken {
		// The token protocol carries the key verbatim instead of a hash.
		if !hmac.Equal(opt.verifier, token.Key) {
			return nil, ErrAuthenticationFailed
		}
	} else {
		digest, err := a.digest(msg, family, opt, token.Key)
		if err != nil {
			return nil, err
		}

		if !hmac.Equal(opt.verifier, digest) {
			return nil, ErrAuthenticationFailed
		}
	}

	state.lastReplay = opt.replay
	state.bound = token

	return token, nil
}

// digest computes the message digest over a copy of the outer message with
// the MAC field zeroed, applying the RFC 3318 hop-count/giaddr rule for
// DHCPv4.
func (a *Authenticator) digest(msg []byte, family Family, opt option, key []byte) ([]byte, error) {
	if opt.algorithm != AlgorithmHMACMD5 {
		return nil, ErrUnsupported
	}

	work := make([]byte, len(msg))
	copy(work, msg)
	zero(work[opt.verifierOff : opt.verifierOff+len(opt.verifier)])

	if family == Family4 {
		if len(work) < relayAddrOffset+relayAddrLen {
			return nil, ErrOutOfRange
		}

		work[hopCountOffset] = 0
		zero(work[relayAddrOffset : relayAddrOffset+relayAddrLen])
	}

	return a.hmac(work, key), nil
}

// Size returns the number of bytes to reserve for the authentication
// option's payload when encoding with the given token. A nil token yields
// the header-only size for the delayed protocols. Encode may use less than
// this for message types that carry the header alone.
func (a *Authenticator) Size(token *Token) (int, error) {
	if err := a.sendable(); err != nil {
		return 0, err
	}

	token, err := a.resolveToken(token)
	if err != nil {
		return 0, err
	}

	size := optMinLen

	switch a.cfg.Protocol {
	case ProtocolToken:
		size += len(token.Key)
	case ProtocolDelayedRealm:
		if token != nil {
			size += len(token.Realm) + secretIDLen + macLen
		}
	case ProtocolDelayed:
		if token != nil {
			size += secretIDLen + macLen
		}
	}

	return size, nil
}

// Encode writes the authentication option payload into msg[off:off+length]
// and computes the MAC over the entire outer message. The hop-count and
// relay-agent address bytes of a DHCPv4 message are zeroed around the
// hashing step and restored bit-for-bit before Encode returns; only the
// option bytes themselves end up modified.
//
// token may be nil: DISCOVER-class messages and lease replays without a
// credential get a header-only option, which is correct on the wire.
// Encode returns the number of payload bytes actually written, which is
// smaller than length in the header-only cases; callers should trim the
// option to that size.
func (a *Authenticator) Encode(token *Token, msg []byte, family Family,
	msgType uint8, off, length int) (int, error) {
	n, err := a.encode(token, msg, family, msgType, off, length)
	if err != nil {
		return 0, err
	}

	a.stats.encoded.Add(1)

	return n, nil
}

func (a *Authenticator) encode(token *Token, msg []byte, family Family,
	msgType uint8, off, length int) (int, error) {
	if err := a.sendable(); err != nil {
		return 0, err
	}

	token, err := a.resolveToken(token)
	if err != nil {
		return 0, err
	}

	if length < optMinLen {
		return 0, ErrBufferTooSmall
	}

	if off < 0 || length > len(msg) || off > len(msg)-length {
		return 0, ErrOutOfRange
	}

	next, err := a.counter.Next()
	if err != nil {
		return 0, err
	}

	p := msg[off : off+length]
	p[0] = byte(a.cfg.Protocol)
	p[1] = byte(a.cfg.Algorithm)
	p[2] = byte(a.cfg.ReplayDetection)
	binary.BigEndian.PutUint64(p[3:], next)
	p = p[optMinLen:]

	written := optMinLen

	if a.cfg.Protocol == ProtocolToken {
		if len(p) < len(token.Key) {
			return 0, ErrBufferTooSmall
		}

		copy(p, token.Key)

		return written + len(token.Key), nil
	}

	// No server has answered yet, so no key can have been selected;
	// DISCOVER-class messages carry the header alone.
	if isPreExchange(family, msgType) {
		return written, nil
	}

	// Replaying a stored lease that has no credential attached.
	if token == nil {
		return written, nil
	}

	if a.cfg.Protocol == ProtocolDelayedRealm {
		if len(p) < len(token.Realm) {
			return 0, ErrBufferTooSmall
		}

		copy(p, token.Realm)
		p = p[len(token.Realm):]
		written += len(token.Realm)
	}

	if len(p) < secretIDLen+macLen {
		return 0, ErrBufferTooSmall
	}

	binary.BigEndian.PutUint32(p, token.SecretID)
	p = p[secretIDLen:]
	written += secretIDLen + macLen

	// The MAC field must be zero while the digest is computed.
	zero(p)

	var (
		hops  byte
		relay [relayAddrLen]byte
	)

	if family == Family4 {
		if len(msg) < relayAddrOffset+relayAddrLen {
			return 0, ErrOutOfRange
		}

		hops = msg[hopCountOffset]
		copy(relay[:], msg[relayAddrOffset:relayAddrOffset+relayAddrLen])

		msg[hopCountOffset] = 0
		zero(msg[relayAddrOffset : relayAddrOffset+relayAddrLen])
	}

	digest := a.hmac(msg, token.Key)

	if family == Family4 {
		msg[hopCountOffset] = hops
		copy(msg[relayAddrOffset:relayAddrOffset+relayAddrLen], relay[:])
	}

	copy(p, digest)

	return written, nil
}

// sendable rejects configurations we cannot encode. The reconfigure-key
// protocol is receive-only.
func (a *Authenticator) sendable() error {
	switch a.cfg.Protocol {
	case ProtocolToken, ProtocolDelayed, ProtocolDelayedRealm:
	default:
		return ErrUnsupported
	}

	if a.cfg.Algorithm != AlgorithmHMACMD5 {
		return ErrUnsupported
	}

	if a.cfg.ReplayDetection != ReplayDetectionMonotonic {
		return ErrUnsupported
	}

	return nil
}

// resolveToken falls back to the default token, SecretID 0 with an empty
// realm, when the token protocol is configured and the caller has not
// picked a token from a server response yet.
func (a *Authenticator) resolveToken(token *Token) (*Token, error) {
	if token != nil || a.cfg.Protocol != ProtocolToken {
		return token, nil
	}

	token = a.cfg.Tokens.Lookup(0, nil)
	if token == nil {
		return nil, ErrTokenNotFound
	}

	if token.Expired(a.now()) {
		return nil, ErrTokenExpired
	}

	return token, nil
}

func isAcknowledgement(family Family, msgType uint8) bool {
	switch family {
	case Family4:
		return dhcpv4.MessageType(msgType) == dhcpv4.MessageTypeAck
	case Family6:
		return dhcpv6.MessageType(msgType) == dhcpv6.MessageTypeReply
	}

	return false
}

func isPreExchange(family Family, msgType uint8) bool {
	switch family {
	case Family4:
		mt := dhcpv4.MessageType(msgType)

		return mt == dhcpv4.MessageTypeDiscover || mt == dhcpv4.MessageTypeInform
	case Family6:
		mt := dhcpv6.MessageType(msgType)

		return mt == dhcpv6.MessageTypeSolicit ||
			mt == dhcpv6.MessageTypeInformationRequest
	}

	return false
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
