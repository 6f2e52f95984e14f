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

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"maas.io/core/src/dhcpclient/internal/atomicfile"
	"maas.io/core/src/dhcpclient/internal/auth"
)

var (
	logLvl      string
	counterFile string
	configFile  string
	family      int
	msgType     int
	optOffset   int
	optLength   int
)

const sampleConfig = `# DHCP message authentication configuration.
#
# protocol: token | delayed | delayed-realm
# algorithm: hmac-md5
# rdm: monotonic
# send: whether this side emits authenticated messages
protocol: delayed-realm
algorithm: hmac-md5
rdm: monotonic
send: true
tokens:
    # Order encodes lookup priority for duplicate (secret_id, realm) scopes.
    # Keys are hex encoded. Omit expire for tokens that never expire.
  - secret_id: 1
    realm: example.com
    key: 000102030405060708090a0b0c0d0e0f
    expire: 2027-01-01T00:00:00Z
`

func setupLogger(lvl string) error {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}
	writer.PartsOrder = []string{
		zerolog.LevelFieldName,
		zerolog.MessageFieldName,
	}
	log.Logger = zerolog.New(writer).With().Logger()

	ll, err := zerolog.ParseLevel(lvl)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(ll)

	return nil
}

func loadMessage(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, err
	}

	msg, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
	if err != nil {
		return nil, fmt.Errorf("%s is not a hex dump: %w", path, err)
	}

	return msg, nil
}

func newCounterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Draw and print the next replay counter value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			next, err := auth.NewMonotonicCounter(counterFile).Next()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "0x%016x\n", next)

			return nil
		},
	}

	cmd.Flags().StringVar(&counterFile, "file", "", "replay counter file (in-memory when empty)")

	return cmd
}

func newTokensCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect and bootstrap token configuration",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the configured tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := auth.LoadConfig(fs, configFile)
			if err != nil {
				return err
			}

			for _, t := range cfg.Tokens.Tokens() {
				expire := "never"
				if !t.Expire.IsZero() {
					expire = t.Expire.Format("2006-01-02T15:04:05Z07:00")
				}

				fmt.Fprintf(cmd.OutOrStdout(), "secret_id=%d realm=%q protocol=%s expire=%s\n",
					t.SecretID, t.Realm, t.Protocol, expire)
			}

			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented starter configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			return atomicfile.WriteFile(fs, configFile, []byte(sampleConfig), 0o600)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "authentication config file")

	if err := cmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}

	cmd.AddCommand(list, initCmd)

	return cmd
}

func newVerifyCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [flags] FILE",
		Short: "Validate the authentication option of a hex-dumped message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := auth.LoadConfig(fs, configFile)
			if err != nil {
				return err
			}

			msg, err := loadMessage(args[0])
			if err != nil {
				return err
			}

			a := auth.NewAuthenticator(cfg)

			token, err := a.Validate(auth.NewState(), msg, auth.Family(family),
				uint8(msgType), optOffset, optLength) //nolint:gosec // flag-bounded
			if err != nil {
				return fmt.Errorf("message rejected: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "authenticated: secret_id=%d realm=%q\n",
				token.SecretID, token.Realm)

			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "authentication config file")
	cmd.Flags().IntVar(&family, "family", 4, "message family, 4 or 6")
	cmd.Flags().IntVar(&msgType, "type", 0, "DHCP message type")
	cmd.Flags().IntVar(&optOffset, "offset", 0, "offset of the auth option payload")
	cmd.Flags().IntVar(&optLength, "length", 0, "length of the auth option payload")

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	return cmd
}

func main() {
	fs := afero.NewOsFs()

	root := &cobra.Command{
		Use:           "dhcp-auth",
		Short:         "DHCP message authentication utilities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger(logLvl)
		},
	}

	root.PersistentFlags().StringVar(&logLvl, "log-level", "info", "log level")

	root.AddCommand(newCounterCmd(), newTokensCmd(fs), newVerifyCmd(fs))

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Send()
		os.Exit(1)
	}
}
