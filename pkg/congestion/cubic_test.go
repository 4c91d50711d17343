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
	"testing"
	"time"
)

func TestCubicSlowStartGrowth(t *testing.T) {
	c := NewCubic(minCongestionWindow, 1<<20)
	if !c.InSlowStart() {
		t.Fatalf("InSlowStart() = false for a fresh controller")
	}
	before := c.CongestionWindow()
	now := time.Now()
	c.OnPacketSent(now, 1, 1200)
	c.OnAck(&AckEvent{AckTime: now.Add(50 * time.Millisecond), AckedBytes: 1200, LargestAcked: 1})
	if c.CongestionWindow() != before+1200 {
		t.Errorf("CongestionWindow() = %d after ack in slow start, want %d", c.CongestionWindow(), before+1200)
	}
}

func TestCubicLossBackoff(t *testing.T) {
	c := NewCubic(minCongestionWindow, 1<<20)
	before := c.CongestionWindow()
	now := time.Now()
	c.OnPacketSent(now, 1, 1200)
	c.OnLoss(&LossEvent{LossTime: now, LostBytes: 1200})
	if c.InSlowStart() {
		t.Errorf("InSlowStart() = true after loss")
	}
	want := uint64(float64(before) * cubicBeta)
	if c.CongestionWindow() != want {
		t.Errorf("CongestionWindow() = %d after loss, want %d", c.CongestionWindow(), want)
	}
}

func TestCubicPersistentCongestion(t *testing.T) {
	c := NewCubic(minCongestionWindow, 1<<20)
	now := time.Now()
	c.OnLoss(&LossEvent{LossTime: now, LostBytes: 0, PersistentCongestion: true})
	if !c.InSlowStart() {
		t.Errorf("InSlowStart() = false after persistent congestion")
	}
	if c.CongestionWindow() != minCongestionWindow {
		t.Errorf("CongestionWindow() = %d, want %d", c.CongestionWindow(), minCongestionWindow)
	}
}

func TestCubicWritableBytes(t *testing.T) {
	c := NewCubic(minCongestionWindow, 1<<20)
	window := c.CongestionWindow()
	now := time.Now()
	c.OnPacketSent(now, 1, 1200)
	if c.WritableBytes() != window-1200 {
		t.Errorf("WritableBytes() = %d, want %d", c.WritableBytes(), window-1200)
	}
	c.OnPacketSent(now, 2, window)
	if c.WritableBytes() != 0 {
		t.Errorf("WritableBytes() = %d with a full window, want 0", c.WritableBytes())
	}
}

func TestCubicAppIdle(t *testing.T) {
	c := NewCubic(minCongestionWindow, 1<<20)
	now := time.Now()
	c.SetAppIdle(true, now)
	before := c.CongestionWindow()
	c.OnPacketSent(now, 1, 1200)
	c.OnAck(&AckEvent{AckTime: now.Add(10 * time.Millisecond), AckedBytes: 1200, LargestAcked: 1})
	if c.CongestionWindow() != before {
		t.Errorf("CongestionWindow() = %d grew while app idle, want %d", c.CongestionWindow(), before)
	}
}

func TestParseType(t *testing.T) {
	testcases := []struct {
		name    string
		want    Type
		wantErr bool
	}{
		{"cubic", TypeCubic, false},
		{"CUBIC", TypeCubic, false},
		{"newreno", TypeNewReno, false},
		{"bbr", TypeBBR, false},
		{"copa", TypeCopa, false},
		{"vegas", 0, true},
	}
	for _, tc := range testcases {
		got, err := ParseType(tc.name)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseType(%q) returned no error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseType(%q) failed: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseType(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewController(t *testing.T) {
	c, err := NewController(TypeCubic, 1<<20)
	if err != nil {
		t.Fatalf("NewController(TypeCubic) failed: %v", err)
	}
	if c.Type() != TypeCubic {
		t.Errorf("Type() = %v, want %v", c.Type(), TypeCubic)
	}
	if _, err := NewController(TypeBBR, 1<<20); err == nil {
		t.Errorf("NewController(TypeBBR) returned no error")
	}
}
