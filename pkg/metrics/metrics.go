// Copyright (C) 2023  mvfst authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package metrics

// Process wide transport metrics.
var (
	// Number of QUIC packets fully processed.
	PacketsProcessed = RegisterMetric("packets", "Processed")

	// Number of QUIC packets dropped before processing completed.
	PacketsDropped = RegisterMetric("packets", "Dropped")

	// Number of QUIC packets received with a packet number smaller than
	// the largest one seen in the same packet number space.
	OutOfOrderPacketsReceived = RegisterMetric("packets", "OutOfOrderReceived")

	// Number of undecryptable QUIC packets buffered while waiting for keys.
	PacketsBuffered = RegisterMetric("packets", "Buffered")

	// Number of stateless reset tokens handed out.
	StatelessResets = RegisterMetric("packets", "StatelessResets")

	// Number of streams opened, either locally or by peers.
	StreamsOpened = RegisterMetric("streams", "Opened")

	// Number of streams fully closed and removed.
	StreamsClosed = RegisterMetric("streams", "Closed")

	// Number of accepted peer address migrations.
	ConnectionMigrations = RegisterMetric("connections", "Migrations")

	// Number of path challenges issued due to peer address changes.
	PathChallengesIssued = RegisterMetric("connections", "PathChallenges")
)
