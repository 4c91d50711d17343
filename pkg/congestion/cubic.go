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

package congestion

import (
	"math"
	"time"

	"github.com/FFhix10/mvfst/pkg/mathext"
)

type cubicOperationMode int

const (
	cubicSlowStart cubicOperationMode = iota
	cubicNormal
)

const (
	cubicBeta float64 = 0.7
	cubicC    float64 = 0.4

	// minCongestionWindow is expressed in bytes.
	minCongestionWindow uint64 = 2 * 1200
)

// Cubic implements the cubic congestion algorithm over byte windows.
type Cubic struct {
	minWindow                     uint64
	maxWindow                     uint64
	mode                          cubicOperationMode
	congestionWindow              uint64
	windowSizeBeforeLastReduction uint64
	lastReductionTime             time.Time
	accumulatedAckBytes           uint64
	bytesInFlight                 uint64
	appIdle                       bool
}

var _ Controller = &Cubic{}

// NewCubic initializes a new Cubic controller.
func NewCubic(minWindow, maxWindow uint64) *Cubic {
	if minWindow > maxWindow {
		panic("minimum congestion window size is greater than maximum congestion window size")
	}
	return &Cubic{
		minWindow:        minWindow,
		maxWindow:        maxWindow,
		mode:             cubicSlowStart,
		congestionWindow: mathext.Clamp(10*1200, minWindow, maxWindow),
	}
}

func (c *Cubic) OnPacketSent(sentTime time.Time, packetNum uint64, bytes uint64) {
	c.bytesInFlight += bytes
}

func (c *Cubic) OnAck(event *AckEvent) {
	c.bytesInFlight -= mathext.Min(c.bytesInFlight, event.AckedBytes)
	if c.appIdle {
		// The window does not grow while the application is idle.
		return
	}
	if c.mode == cubicSlowStart {
		c.congestionWindow += event.AckedBytes
		c.congestionWindow = c.inRange()
		return
	}
	c.accumulatedAckBytes += event.AckedBytes
	k := math.Cbrt(float64(c.windowSizeBeforeLastReduction) * (1 - cubicBeta) / cubicC)
	t := event.AckTime.Sub(c.lastReductionTime).Seconds()
	c.congestionWindow = uint64(cubicC*(t-k)*(t-k)*(t-k)+float64(c.windowSizeBeforeLastReduction)) + c.accumulatedAckBytes/16
	c.congestionWindow = c.inRange()
}

func (c *Cubic) OnLoss(event *LossEvent) {
	c.bytesInFlight -= mathext.Min(c.bytesInFlight, event.LostBytes)
	if event.PersistentCongestion {
		c.mode = cubicSlowStart
		c.congestionWindow = c.minWindow
		c.windowSizeBeforeLastReduction = 0
		c.lastReductionTime = time.Time{}
		c.accumulatedAckBytes = 0
		return
	}
	c.mode = cubicNormal
	c.lastReductionTime = event.LossTime
	c.windowSizeBeforeLastReduction = c.congestionWindow
	c.accumulatedAckBytes = 0
	c.congestionWindow = uint64(float64(c.congestionWindow) * cubicBeta)
	c.congestionWindow = c.inRange()
}

func (c *Cubic) SetAppIdle(idle bool, eventTime time.Time) {
	c.appIdle = idle
}

func (c *Cubic) WritableBytes() uint64 {
	if c.bytesInFlight >= c.congestionWindow {
		return 0
	}
	return c.congestionWindow - c.bytesInFlight
}

func (c *Cubic) CongestionWindow() uint64 {
	return c.congestionWindow
}

func (c *Cubic) Type() Type {
	return TypeCubic
}

// InSlowStart returns if cubic is in slow start mode.
func (c *Cubic) InSlowStart() bool {
	return c.mode == cubicSlowStart
}

// inRange makes sure the congestion window is inside the min and max value.
func (c *Cubic) inRange() uint64 {
	return mathext.Clamp(c.congestionWindow, c.minWindow, c.maxWindow)
}
