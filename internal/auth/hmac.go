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
	"crypto/hmac"
	//nolint:gosec // RFC 3118 authentication is defined over HMAC-MD5
	"crypto/md5"
)

// HMACFunc computes a 16-byte keyed digest over message. The default is
// HMAC-MD5; tests may substitute their own via WithHMAC.
type HMACFunc func(message, key []byte) []byte

func hmacMD5(message, key []byte) []byte {
	mac := hmac.New(md5.New, key)

	// hash.Hash.Write never returns an error
	mac.Write(message) //nolint:errcheck,gosec

	return mac.Sum(nil)
}
