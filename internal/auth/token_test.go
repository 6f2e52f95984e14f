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

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"maas.io/core/src/dhcpclient/internal/auth"
)

func TestTokenStoreLookup(t *testing.T) {
	first := &auth.Token{SecretID: 1, Realm: []byte("alpha"), Key: []byte("a")}
	duplicate := &auth.Token{SecretID: 1, Realm: []byte("alpha"), Key: []byte("b")}
	other := &auth.Token{SecretID: 2, Key: []byte("c")}

	store := auth.NewTokenStore(first, duplicate, other)

	t.Run("first match wins", func(t *testing.T) {
		assert.Same(t, first, store.Lookup(1, []byte("alpha")))
	})

	t.Run("realm scopes the secret ID", func(t *testing.T) {
		assert.Nil(t, store.Lookup(1, []byte("beta")))
		assert.Nil(t, store.Lookup(1, nil))
	})

	t.Run("empty realm matches nil realm", func(t *testing.T) {
		assert.Same(t, other, store.Lookup(2, []byte{}))
		assert.Same(t, other, store.Lookup(2, nil))
	})

	t.Run("nil store holds no tokens", func(t *testing.T) {
		var s *auth.TokenStore

		assert.Nil(t, s.Lookup(1, []byte("alpha")))
		assert.Zero(t, s.Len())
	})
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	testcases := map[string]struct {
		expire  time.Time
		expired bool
	}{
		"zero expire never expires": {},
		"future expiry":             {expire: now.Add(time.Hour)},
		"past expiry":               {expire: now.Add(-time.Second), expired: true},
	}

	for name, tc := range testcases {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			token := &auth.Token{Expire: tc.expire}
			assert.Equal(t, tc.expired, token.Expired(now))
		})
	}
}
