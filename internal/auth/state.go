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

// State is the mutable per-session validation state. The first successful
// validation binds the session to a token; every later validation must
// resolve to the same token and carry a strictly larger replay counter.
//
// State is owned by a single session and is not safe for concurrent use.
type State struct {
	bound      *Token
	reconf     *Token
	lastReplay uint64
}

func NewState() *State {
	return &State{}
}

// BoundToken returns the token the session is bound to, or nil if no
// message has validated yet.
func (s *State) BoundToken() *Token {
	return s.bound
}

// LastReplay returns the replay counter of the last accepted message.
func (s *State) LastReplay() uint64 {
	return s.lastReplay
}

// ReconfigureToken returns the ephemeral reconfigure key delivered by the
// server, or nil if none has been accepted.
func (s *State) ReconfigureToken() *Token {
	return s.reconf
}

// Reset returns the session to its initial unbound state and discards the
// reconfigure key. This is the reconfigure token's destruction point; it
// lives until the session that owns this state tears down.
func (s *State) Reset() {
	s.bound = nil
	s.reconf = nil
	s.lastReplay = 0
}
