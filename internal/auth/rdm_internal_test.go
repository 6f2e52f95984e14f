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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Reading the record must seed the in-memory sequence before the rewrite
// is attempted: if the rewrite fails, Next falls back to the in-memory
// counter, and that counter must continue above the persisted value
// instead of restarting at one.
func TestMonotonicCounterSeedsFallbackFromRecord(t *testing.T) {
	file := filepath.Join(t.TempDir(), "rdm_monotonic")
	require.NoError(t, os.WriteFile(file, []byte("0x00000000000003e8\n"), 0o600))

	counter := NewMonotonicCounter(file)

	_, err := counter.nextFromFile()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3e8), counter.last)

	// The in-memory path a failed rewrite would take.
	got, err := counter.fallback()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3e9), got)
}
