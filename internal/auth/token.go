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
	"bytes"
	"time"
)

// Token is a pre-shared credential scoped by (SecretID, Realm). Tokens are
// configured before a session starts and are not mutated afterwards; the
// only dynamically created token is the reconfigure key owned by State.
type Token struct {
	Expire          time.Time
	Realm           []byte
	Key             []byte
	SecretID        uint32
	Protocol        Protocol
	Algorithm       Algorithm
	ReplayDetection ReplayDetection
}

// Expired reports whether the token's expiry has passed. A zero Expire
// never expires.
func (t *Token) Expired(now time.Time) bool {
	return !t.Expire.IsZero() && t.Expire.Before(now)
}

// TokenStore is an ordered collection of tokens. Lookup scans linearly and
// returns the first match, so configuration order encodes priority for
// duplicate (SecretID, Realm) scopes.
type TokenStore struct {
	tokens []*Token
}

func NewTokenStore(tokens ...*Token) *TokenStore {
	return &TokenStore{tokens: tokens}
}

// Add appends a token to the store.
func (s *TokenStore) Add(t *Token) {
	s.tokens = append(s.tokens, t)
}

// Lookup returns the first token whose SecretID and Realm bytes match
// exactly, or nil if there is none. A nil store holds no tokens.
func (s *TokenStore) Lookup(secretID uint32, realm []byte) *Token {
	if s == nil {
		return nil
	}

	for _, t := range s.tokens {
		if t.SecretID == secretID && bytes.Equal(t.Realm, realm) {
			return t
		}
	}

	return nil
}

func (s *TokenStore) Len() int {
	if s == nil {
		return 0
	}

	return len(s.tokens)
}

// Tokens returns the stored tokens in configuration order.
func (s *TokenStore) Tokens() []*Token {
	if s == nil {
		return nil
	}

	out := make([]*Token, len(s.tokens))
	copy(out, s.tokens)

	return out
}
