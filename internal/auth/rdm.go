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
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// ReplayCounter produces the strictly increasing replay counter written
// into outgoing authentication options.
type ReplayCounter interface {
	Next() (uint64, error)
}

// counterRecordLen is the exact size of the persisted record:
// "0x" + 16 hexadecimal digits + newline.
const counterRecordLen = 19

// MonotonicCounter is a 64-bit counter that stays monotonic across process
// restarts by persisting its value to a file guarded by an exclusive
// advisory lock. If the file cannot be read, locked or rewritten, the
// counter degrades to an in-memory sequence seeded from the last value it
// read or handed out: an authentication option with a weaker counter beats
// a message that cannot be sent at all.
//
// An empty path skips persistence entirely.
type MonotonicCounter struct {
	path string
	last uint64
	mu   sync.Mutex
}

func NewMonotonicCounter(path string) *MonotonicCounter {
	return &MonotonicCounter{path: path}
}

// Next returns the next counter value. The only error it reports is
// ErrCounterExhausted, once the counter reaches its maximum: wrapping
// around would let an attacker replay the entire counter history, so the
// session must re-key instead.
func (c *MonotonicCounter) Next() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return c.fallback()
	}

	next, err := c.nextFromFile()
	if err != nil {
		if errors.Is(err, ErrCounterExhausted) {
			return 0, err
		}

		log.Warn().Err(err).Str("file", c.path).
			Msg("Replay counter file unusable, continuing in memory")

		return c.fallback()
	}

	c.last = next

	return next, nil
}

func (c *MonotonicCounter) fallback() (uint64, error) {
	if c.last == math.MaxUint64 {
		return 0, ErrCounterExhausted
	}

	c.last++

	return c.last, nil
}

func (c *MonotonicCounter) nextFromFile() (uint64, error) {
	//nolint:gosec // the path is operator configuration, not input
	f, err := os.OpenFile(c.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return 0, err
	}

	//nolint:errcheck,gosec // the file is read and rewritten before this runs
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return 0, err
	}

	//nolint:errcheck,gosec // closing releases the lock anyway
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	data, err := io.ReadAll(io.LimitReader(f, counterRecordLen*2))
	if err != nil {
		return 0, err
	}

	// A missing, truncated or unparsable record restarts the sequence.
	stored := parseCounterRecord(data)
	if stored == math.MaxUint64 {
		return 0, ErrCounterExhausted
	}

	// Seed the in-memory sequence before attempting the rewrite, so a
	// failed rewrite falls back to stored+1 instead of regressing below
	// the persisted value.
	if stored > c.last {
		c.last = stored
	}

	next := stored + 1

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	if err := f.Truncate(0); err != nil {
		return 0, err
	}

	if _, err := fmt.Fprintf(f, "0x%016x\n", next); err != nil {
		return 0, err
	}

	return next, nil
}

func parseCounterRecord(data []byte) uint64 {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0
	}

	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0
	}

	return v
}
