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

package server

import (
	"fmt"
	"testing"

	"github.com/FFhix10/mvfst/pkg/congestion"
)

func TestParseTransportKnobsIntegers(t *testing.T) {
	blob := fmt.Sprintf(`{"%d": 1452, "%d": true, "17": 0}`,
		uint64(KnobForciblySetUDPPayloadSize), uint64(KnobMaxPacingRate))
	params, err := ParseTransportKnobs(blob)
	if err != nil {
		t.Fatalf("ParseTransportKnobs() failed: %v", err)
	}
	if len(params) != 3 {
		t.Fatalf("len(params) = %d, want 3", len(params))
	}
	// Output is sorted by (id, value).
	for i := 1; i < len(params); i++ {
		if params[i-1].ID > params[i].ID {
			t.Errorf("params not sorted by id: %v", params)
		}
	}
	if params[0].ID != 17 || params[0].Val != 0 {
		t.Errorf("params[0] = %v, want {17 0}", params[0])
	}
	if params[2].ID != uint64(KnobMaxPacingRate) || params[2].Val != 1 {
		t.Errorf("boolean knob = %v, want value 1", params[2])
	}
}

func TestParseTransportKnobsCCAlgorithm(t *testing.T) {
	blob := fmt.Sprintf(`{"%d": "cubic"}`, uint64(KnobCCAlgorithm))
	params, err := ParseTransportKnobs(blob)
	if err != nil {
		t.Fatalf("ParseTransportKnobs() failed: %v", err)
	}
	if len(params) != 1 || params[0].Val != uint64(congestion.TypeCubic) {
		t.Errorf("params = %v, want cc type cubic", params)
	}

	// An unknown algorithm rejects the whole batch.
	bad := fmt.Sprintf(`{"%d": "vegas", "17": 1}`, uint64(KnobCCAlgorithm))
	if _, err := ParseTransportKnobs(bad); err == nil {
		t.Errorf("unknown cc algorithm did not reject the batch")
	}
}

func TestParseTransportKnobsRttFactor(t *testing.T) {
	blob := fmt.Sprintf(`{"%d": "1/2"}`, uint64(KnobStartupRttFactor))
	params, err := ParseTransportKnobs(blob)
	if err != nil {
		t.Fatalf("ParseTransportKnobs() failed: %v", err)
	}
	if params[0].Val != 1*100+2 {
		t.Errorf("packed rtt factor = %d, want %d", params[0].Val, 102)
	}

	badValues := []string{`"3"`, `"0/2"`, `"2/0"`, `"100/2"`, `"2/100"`, `"-1/2"`}
	for _, v := range badValues {
		blob := fmt.Sprintf(`{"%d": %s}`, uint64(KnobDefaultRttFactor), v)
		if _, err := ParseTransportKnobs(blob); err == nil {
			t.Errorf("rtt factor %s did not reject the batch", v)
		}
	}
}

func TestParseTransportKnobsAutoBackgroundMode(t *testing.T) {
	blob := fmt.Sprintf(`{"%d": "3,75"}`, uint64(KnobAutoBackgroundMode))
	params, err := ParseTransportKnobs(blob)
	if err != nil {
		t.Fatalf("ParseTransportKnobs() failed: %v", err)
	}
	if params[0].Val != 3*priorityThresholdKnobMultiplier+75 {
		t.Errorf("packed background mode = %d, want %d", params[0].Val, 3*priorityThresholdKnobMultiplier+75)
	}

	badValues := []string{`"3"`, `"8,75"`, `"3,24"`, `"3,101"`, `"a,75"`}
	for _, v := range badValues {
		blob := fmt.Sprintf(`{"%d": %s}`, uint64(KnobAutoBackgroundMode), v)
		if _, err := ParseTransportKnobs(blob); err == nil {
			t.Errorf("background mode %s did not reject the batch", v)
		}
	}
}

func TestParseTransportKnobsRejectsBadShapes(t *testing.T) {
	badBlobs := []string{
		`not json`,
		`{"17": [1, 2]}`,
		`{"17": null}`,
		`{"17": {"nested": 1}}`,
		`{"17": 1.5}`,
		`{"17": -3}`,
		`{"seventeen": 1}`,
		`{"17": "string on a plain knob"}`,
	}
	for _, blob := range badBlobs {
		if _, err := ParseTransportKnobs(blob); err == nil {
			t.Errorf("blob %q did not reject", blob)
		}
	}
}

func TestParseTransportKnobsSortsByValue(t *testing.T) {
	// Duplicate keys cannot exist in one JSON object, so same-id
	// ordering only matters across parses; still, the comparator
	// falls back to the value.
	params := []KnobParam{{ID: 5, Val: 9}, {ID: 5, Val: 2}}
	sortKnobParams(params)
	if params[0].Val != 2 || params[1].Val != 9 {
		t.Errorf("params = %v, want sorted by value", params)
	}
}
