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
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type stats struct {
	accepted atomic.Int64
	rejected atomic.Int64
	encoded  atomic.Int64
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

// WithMetricMeter allows to set OpenTelemetry metric.Meter to collect
// message authentication stats.
func WithMetricMeter(meter metric.Meter) AuthenticatorOption {
	return func(a *Authenticator) {
		accepted := attribute.String("type", "accepted")
		rejected := attribute.String("type", "rejected")
		encoded := attribute.String("type", "encoded")

		must(meter.Int64ObservableCounter("auth.messages",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(a.stats.accepted.Load(), metric.WithAttributes(accepted))
				o.Observe(a.stats.rejected.Load(), metric.WithAttributes(rejected))
				o.Observe(a.stats.encoded.Load(), metric.WithAttributes(encoded))

				return nil
			})))
	}
}
