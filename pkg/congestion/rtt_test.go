// Copyright (C) 2024  mvfst authors
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

func TestUpdateRTTFirstSample(t *testing.T) {
	s := NewRTTStats()
	s.UpdateRTT(300*time.Millisecond, 0)
	if s.MinRTT() != 300*time.Millisecond {
		t.Errorf("MinRTT() = %v, want %v", s.MinRTT(), 300*time.Millisecond)
	}
	if s.SmoothedRTT() != 300*time.Millisecond {
		t.Errorf("SmoothedRTT() = %v, want %v", s.SmoothedRTT(), 300*time.Millisecond)
	}
	if s.MeanDeviation() != 150*time.Millisecond {
		t.Errorf("MeanDeviation() = %v, want %v", s.MeanDeviation(), 150*time.Millisecond)
	}
}

func TestUpdateRTTSecondSample(t *testing.T) {
	s := NewRTTStats()
	s.UpdateRTT(300*time.Millisecond, 0)
	s.UpdateRTT(200*time.Millisecond, 0)
	if s.MinRTT() != 200*time.Millisecond {
		t.Errorf("MinRTT() = %v, want %v", s.MinRTT(), 200*time.Millisecond)
	}
	if s.LatestRTT() != 200*time.Millisecond {
		t.Errorf("LatestRTT() = %v, want %v", s.LatestRTT(), 200*time.Millisecond)
	}
	if s.SmoothedRTT() != 287500*time.Microsecond {
		t.Errorf("SmoothedRTT() = %v, want %v", s.SmoothedRTT(), 287500*time.Microsecond)
	}
	if s.MeanDeviation() != 137500*time.Microsecond {
		t.Errorf("MeanDeviation() = %v, want %v", s.MeanDeviation(), 137500*time.Microsecond)
	}
}

func TestUpdateRTTAckDelay(t *testing.T) {
	// The first sample becomes the minimum, so subtracting the ack
	// delay would drop it below the minimum: the raw sample is used.
	s := NewRTTStats()
	s.UpdateRTT(300*time.Millisecond, 100*time.Millisecond)
	if s.MinRTT() != 300*time.Millisecond {
		t.Errorf("MinRTT() = %v, want %v", s.MinRTT(), 300*time.Millisecond)
	}
	if s.SmoothedRTT() != 300*time.Millisecond {
		t.Errorf("SmoothedRTT() = %v, want %v", s.SmoothedRTT(), 300*time.Millisecond)
	}
	if s.MaxAckDelay() != 100*time.Millisecond {
		t.Errorf("MaxAckDelay() = %v, want %v", s.MaxAckDelay(), 100*time.Millisecond)
	}

	// The ack delay is ignored when subtracting it would drop the
	// sample below the known path minimum.
	s2 := NewRTTStats()
	s2.UpdateRTT(100*time.Millisecond, 0)
	s2.UpdateRTT(110*time.Millisecond, 50*time.Millisecond)
	if s2.LatestRTT() != 110*time.Millisecond {
		t.Errorf("LatestRTT() = %v, want %v", s2.LatestRTT(), 110*time.Millisecond)
	}
}

func TestUpdateRTTInvariants(t *testing.T) {
	s := NewRTTStats()
	samples := []time.Duration{
		120 * time.Millisecond,
		80 * time.Millisecond,
		250 * time.Millisecond,
		90 * time.Millisecond,
		300 * time.Millisecond,
	}
	for _, sample := range samples {
		s.UpdateRTT(sample, 10*time.Millisecond)
		if s.MinRTT() > s.SmoothedRTT() {
			t.Errorf("MinRTT() %v > SmoothedRTT() %v", s.MinRTT(), s.SmoothedRTT())
		}
		if s.MeanDeviation() < 0 {
			t.Errorf("MeanDeviation() = %v, want >= 0", s.MeanDeviation())
		}
	}
}

func TestUpdateRTTIgnoresBadSample(t *testing.T) {
	s := NewRTTStats()
	s.UpdateRTT(0, 0)
	s.UpdateRTT(-time.Second, 0)
	if s.HasMeasurement() {
		t.Errorf("HasMeasurement() = true after invalid samples")
	}
}

func TestRTTSnapshotRestore(t *testing.T) {
	s := NewRTTStats()
	s.UpdateRTT(100*time.Millisecond, 0)
	s.UpdateRTT(140*time.Millisecond, 0)
	snapshot := s.Snapshot()

	s.Reset()
	if s.HasMeasurement() {
		t.Errorf("HasMeasurement() = true after Reset()")
	}
	if s.MinRTT() != DefaultMinRTT {
		t.Errorf("MinRTT() = %v after Reset(), want %v", s.MinRTT(), DefaultMinRTT)
	}

	s.Restore(snapshot)
	if s.MinRTT() != 100*time.Millisecond {
		t.Errorf("restored MinRTT() = %v, want %v", s.MinRTT(), 100*time.Millisecond)
	}
	if s.SmoothedRTT() != snapshot.SmoothedRTT {
		t.Errorf("restored SmoothedRTT() = %v, want %v", s.SmoothedRTT(), snapshot.SmoothedRTT)
	}
	if !s.HasMeasurement() {
		t.Errorf("HasMeasurement() = false after Restore()")
	}
}

func TestRTO(t *testing.T) {
	s := NewRTTStats()
	if s.RTO() != 2*defaultInitialRTT {
		t.Errorf("RTO() = %v before any sample, want %v", s.RTO(), 2*defaultInitialRTT)
	}
	s.UpdateRTT(100*time.Millisecond, 0)
	s.SetMaxAckDelay(25 * time.Millisecond)
	want := 100*time.Millisecond + 4*50*time.Millisecond + 25*time.Millisecond
	if s.RTO() != want {
		t.Errorf("RTO() = %v, want %v", s.RTO(), want)
	}
}
