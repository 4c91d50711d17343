// MIT License
//
// Copyright (c) 2016 the quic-go authors & Google, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package congestion

import (
	"math"
	"time"

	"github.com/FFhix10/mvfst/pkg/mathext"
)

const (
	// rttAlpha is the divisor of the smoothed RTT exponential moving average.
	rttAlpha = 8
	// rttBeta is the divisor of the RTT variance exponential moving average.
	rttBeta = 4

	defaultInitialRTT = 500 * time.Millisecond
	infDuration       = time.Duration(math.MaxInt64)

	// DefaultMinRTT marks an RTTStats that has not received a sample yet.
	DefaultMinRTT = infDuration
)

// RTTStats provides round-trip statistics.
type RTTStats struct {
	hasMeasurement bool

	minRTT        time.Duration
	latestRTT     time.Duration
	smoothedRTT   time.Duration
	meanDeviation time.Duration

	maxAckDelay   time.Duration
	rtoMultiplier float64
}

// RTTSnapshot is the copyable part of RTTStats, recorded when a
// connection migrates away from a validated path.
type RTTSnapshot struct {
	MinRTT        time.Duration
	LatestRTT     time.Duration
	SmoothedRTT   time.Duration
	MeanDeviation time.Duration
}

// NewRTTStats makes a properly initialized RTTStats object.
func NewRTTStats() *RTTStats {
	return &RTTStats{
		minRTT:        DefaultMinRTT,
		rtoMultiplier: 1.0,
	}
}

// MinRTT returns the minRTT for the entire connection.
// May return DefaultMinRTT if no valid updates have occurred.
func (r *RTTStats) MinRTT() time.Duration { return r.minRTT }

// LatestRTT returns the most recent rtt measurement.
// May return Zero if no valid updates have occurred.
func (r *RTTStats) LatestRTT() time.Duration { return r.latestRTT }

// SmoothedRTT returns the smoothed RTT for the connection.
// May return Zero if no valid updates have occurred.
func (r *RTTStats) SmoothedRTT() time.Duration { return r.smoothedRTT }

// MeanDeviation gets the mean deviation.
func (r *RTTStats) MeanDeviation() time.Duration { return r.meanDeviation }

// MaxAckDelay gets the largest ack delay the peer has reported.
func (r *RTTStats) MaxAckDelay() time.Duration { return r.maxAckDelay }

// HasMeasurement returns true after the first valid sample.
func (r *RTTStats) HasMeasurement() bool { return r.hasMeasurement }

// RTO gets the retransmission timeout.
func (r *RTTStats) RTO() time.Duration {
	if r.SmoothedRTT() == 0 {
		return 2 * defaultInitialRTT
	}
	rto := r.SmoothedRTT() + mathext.Max(4*r.MeanDeviation(), 10*time.Millisecond)
	rto += r.MaxAckDelay()
	return time.Duration(float64(rto) * r.rtoMultiplier)
}

// UpdateRTT updates the statistics based on a new sample, adjusted by
// the ack delay the peer reported for the acknowledging packet.
//
// The minimum RTT ignores the ack delay and is updated first. The ack
// delay is then subtracted from the sample used for the smoothed RTT
// only when the result stays above that minimum, so the smoothed RTT
// never drops below the minimum.
func (r *RTTStats) UpdateRTT(sample, ackDelay time.Duration) {
	if sample == infDuration || sample <= 0 {
		return
	}

	r.minRTT = mathext.Min(r.minRTT, sample)
	r.maxAckDelay = mathext.Max(r.maxAckDelay, ackDelay)
	if sample > ackDelay && (sample > r.minRTT+ackDelay || r.minRTT == DefaultMinRTT) {
		sample -= ackDelay
	}

	r.latestRTT = sample
	if !r.hasMeasurement {
		r.hasMeasurement = true
		r.smoothedRTT = sample
		r.meanDeviation = sample / 2
	} else {
		r.meanDeviation = r.meanDeviation*(rttBeta-1)/rttBeta +
			mathext.Abs(r.smoothedRTT-sample)/rttBeta
		r.smoothedRTT = r.smoothedRTT*(rttAlpha-1)/rttAlpha + sample/rttAlpha
	}
}

// SetMaxAckDelay sets the max_ack_delay.
func (r *RTTStats) SetMaxAckDelay(mad time.Duration) {
	r.maxAckDelay = mad
}

// SetRTOMultiplier sets the retransmission timeout multiplier.
func (r *RTTStats) SetRTOMultiplier(n float64) {
	if n <= 0 {
		panic("retransmission timeout multiplier must be greater than 0")
	}
	r.rtoMultiplier = n
}

// Snapshot copies the current statistics.
func (r *RTTStats) Snapshot() RTTSnapshot {
	return RTTSnapshot{
		MinRTT:        r.minRTT,
		LatestRTT:     r.latestRTT,
		SmoothedRTT:   r.smoothedRTT,
		MeanDeviation: r.meanDeviation,
	}
}

// Restore brings back statistics recorded by Snapshot.
func (r *RTTStats) Restore(s RTTSnapshot) {
	r.minRTT = s.MinRTT
	r.latestRTT = s.LatestRTT
	r.smoothedRTT = s.SmoothedRTT
	r.meanDeviation = s.MeanDeviation
	r.hasMeasurement = s.SmoothedRTT != 0
}

// Reset is called when connection migrates and rtt measurement needs to be reset.
func (r *RTTStats) Reset() {
	r.hasMeasurement = false
	r.latestRTT = 0
	r.minRTT = DefaultMinRTT
	r.smoothedRTT = 0
	r.meanDeviation = 0
}

// ExpireSmoothedMetrics causes the smoothed_rtt to be increased to the latest_rtt if the latest_rtt
// is larger. The mean deviation is increased to the most recent deviation if
// it's larger.
func (r *RTTStats) ExpireSmoothedMetrics() {
	r.meanDeviation = mathext.Max(r.meanDeviation, mathext.Abs(r.smoothedRTT-r.latestRTT))
	r.smoothedRTT = mathext.Max(r.smoothedRTT, r.latestRTT)
}
