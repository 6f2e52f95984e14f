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
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ParseProtocol parses a protocol name as used in configuration files.
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "token":
		return ProtocolToken, nil
	case "delayed":
		return ProtocolDelayed, nil
	case "delayed-realm":
		return ProtocolDelayedRealm, nil
	}

	return 0, fmt.Errorf("%w: protocol %q", ErrUnsupported, s)
}

// ParseAlgorithm parses an algorithm name as used in configuration files.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "hmac-md5" {
		return AlgorithmHMACMD5, nil
	}

	return 0, fmt.Errorf("%w: algorithm %q", ErrUnsupported, s)
}

// ParseReplayDetection parses a replay detection method name as used in
// configuration files.
func ParseReplayDetection(s string) (ReplayDetection, error) {
	if s == "monotonic" {
		return ReplayDetectionMonotonic, nil
	}

	return 0, fmt.Errorf("%w: replay detection %q", ErrUnsupported, s)
}

// rawToken can be considered a helper, having simple types for
// unmarshaling. Key is hex encoded, the realm is a literal string and a
// zero expire means the token never expires.
type rawToken struct {
	Expire          time.Time `yaml:"expire"`
	Protocol        string    `yaml:"protocol"`
	Algorithm       string    `yaml:"algorithm"`
	ReplayDetection string    `yaml:"rdm"`
	Realm           string    `yaml:"realm"`
	Key             string    `yaml:"key"`
	SecretID        uint32    `yaml:"secret_id"`
}

type rawConfig struct {
	Protocol        string     `yaml:"protocol"`
	Algorithm       string     `yaml:"algorithm"`
	ReplayDetection string     `yaml:"rdm"`
	Tokens          []rawToken `yaml:"tokens"`
	Send            bool       `yaml:"send"`
}

// LoadConfig loads the session authentication configuration and its token
// collection from a YAML file. Token order in the file is preserved and
// encodes lookup priority. Tokens may omit protocol, algorithm and rdm to
// inherit the session values; a token naming a different scheme than the
// session is a configuration error.
func LoadConfig(fs afero.Fs, file string) (Config, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return Config{}, fmt.Errorf("reading auth config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse auth config: %w", err)
	}

	cfg := Config{Send: raw.Send}

	cfg.Protocol, err = ParseProtocol(raw.Protocol)
	if err != nil {
		return Config{}, err
	}

	cfg.Algorithm, err = ParseAlgorithm(raw.Algorithm)
	if err != nil {
		return Config{}, err
	}

	cfg.ReplayDetection, err = ParseReplayDetection(raw.ReplayDetection)
	if err != nil {
		return Config{}, err
	}

	store := NewTokenStore()

	for i, rt := range raw.Tokens {
		token, err := parseToken(cfg, rt)
		if err != nil {
			return Config{}, fmt.Errorf("token %d: %w", i, err)
		}

		store.Add(token)
	}

	cfg.Tokens = store

	return cfg, nil
}

func parseToken(cfg Config, rt rawToken) (*Token, error) {
	token := &Token{
		SecretID:        rt.SecretID,
		Expire:          rt.Expire,
		Protocol:        cfg.Protocol,
		Algorithm:       cfg.Algorithm,
		ReplayDetection: cfg.ReplayDetection,
	}

	if rt.Realm != "" {
		token.Realm = []byte(rt.Realm)
	}

	key, err := hex.DecodeString(rt.Key)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}

	token.Key = key

	if rt.Protocol != "" {
		token.Protocol, err = ParseProtocol(rt.Protocol)
		if err != nil {
			return nil, err
		}

		if token.Protocol != cfg.Protocol {
			return nil, fmt.Errorf("%w: token protocol %q does not match session protocol %q",
				ErrProtocolMismatch, token.Protocol, cfg.Protocol)
		}
	}

	if rt.Algorithm != "" {
		token.Algorithm, err = ParseAlgorithm(rt.Algorithm)
		if err != nil {
			return nil, err
		}

		if token.Algorithm != cfg.Algorithm {
			return nil, fmt.Errorf("%w: token algorithm %q does not match session algorithm %q",
				ErrProtocolMismatch, token.Algorithm, cfg.Algorithm)
		}
	}

	if rt.ReplayDetection != "" {
		token.ReplayDetection, err = ParseReplayDetection(rt.ReplayDetection)
		if err != nil {
			return nil, err
		}

		if token.ReplayDetection != cfg.ReplayDetection {
			return nil, fmt.Errorf("%w: token rdm %q does not match session rdm %q",
				ErrProtocolMismatch, token.ReplayDetection, cfg.ReplayDetection)
		}
	}

	return token, nil
}
