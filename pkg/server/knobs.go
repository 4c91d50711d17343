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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/FFhix10/mvfst/pkg/congestion"
	"github.com/FFhix10/mvfst/pkg/log"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// KnobParamID identifies one runtime tuning knob.
type KnobParamID uint64

const (
	KnobForciblySetUDPPayloadSize KnobParamID = 0x1001
	KnobCCAlgorithm               KnobParamID = 0x1002
	KnobStartupRttFactor          KnobParamID = 0x1003
	KnobDefaultRttFactor          KnobParamID = 0x1004
	KnobMaxPacingRate             KnobParamID = 0x1005
	KnobAutoBackgroundMode        KnobParamID = 0x1006
)

const (
	// knobFractionMax bounds both halves of a fraction valued knob.
	knobFractionMax = 100

	// priorityThresholdKnobMultiplier packs the background mode
	// priority threshold next to the utilization percent.
	priorityThresholdKnobMultiplier = 1000
)

// KnobParam is one decoded knob setting.
type KnobParam struct {
	ID  uint64
	Val uint64
}

// ParseTransportKnobs decodes the JSON encoded knob blob. Keys are
// decimal parameter ids; values are integers, booleans, or strings for
// the fraction and mode valued knobs. Any invalid entry rejects the
// whole batch.
func ParseTransportKnobs(serializedParams string) ([]KnobParam, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(serializedParams)))
	decoder.UseNumber()
	var params map[string]any
	if err := decoder.Decode(&params); err != nil {
		return nil, fmt.Errorf("fail to parse knobs: %w", err)
	}

	var knobParams []KnobParam
	for key, val := range params {
		paramID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("knob key %q is not an integer: %w", key, err)
		}
		switch v := val.(type) {
		case bool:
			var asInt uint64
			if v {
				asInt = 1
			}
			knobParams = append(knobParams, KnobParam{ID: paramID, Val: asInt})
		case json.Number:
			asInt, err := strconv.ParseUint(v.String(), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("knob %d value %v is not an unsigned integer", paramID, v)
			}
			knobParams = append(knobParams, KnobParam{ID: paramID, Val: asInt})
		case string:
			packed, err := parseStringKnob(KnobParamID(paramID), v)
			if err != nil {
				return nil, err
			}
			knobParams = append(knobParams, KnobParam{ID: paramID, Val: packed})
		default:
			// Array, null and object values are not valid knobs.
			return nil, fmt.Errorf("invalid transport knob param value type %T", val)
		}
	}

	sortKnobParams(knobParams)
	return knobParams, nil
}

// sortKnobParams orders knobs by id, then value.
func sortKnobParams(params []KnobParam) {
	sort.Slice(params, func(i, j int) bool {
		if params[i].ID != params[j].ID {
			return params[i].ID < params[j].ID
		}
		return params[i].Val < params[j].Val
	})
}

func parseStringKnob(id KnobParamID, val string) (uint64, error) {
	switch id {
	case KnobCCAlgorithm:
		// The value is the lower case name of a congestion control
		// algorithm.
		ccType, err := congestion.ParseType(val)
		if err != nil {
			log.Errorf("unknown cc type %q", val)
			return 0, err
		}
		return uint64(ccType), nil

	case KnobStartupRttFactor, KnobDefaultRttFactor:
		// The value is a fraction "{numerator}/{denominator}". Both
		// halves must be ints in range (0,100), 100 excluded. Knob values are single
		// integers, so the fraction is packed and unpacked in the
		// handler.
		pos := strings.Index(val, "/")
		if pos < 0 {
			return 0, fmt.Errorf("rtt factor knob expected format {numerator}/{denominator}")
		}
		numerator, err := strconv.ParseInt(val[:pos], 10, 64)
		if err != nil {
			numerator = knobFractionMax
		}
		denominator, err := strconv.ParseInt(val[pos+1:], 10, 64)
		if err != nil {
			denominator = knobFractionMax
		}
		if numerator <= 0 || denominator <= 0 || numerator >= knobFractionMax || denominator >= knobFractionMax {
			return 0, fmt.Errorf("rtt factor knob numerator and denominator must be ints in range (0,%d]", knobFractionMax)
		}
		return uint64(numerator)*knobFractionMax + uint64(denominator), nil

	case KnobAutoBackgroundMode:
		// The value is "{priority_threshold},{percent_utilization}":
		// priority_threshold in [0,7], percent_utilization in [25,100].
		parts := strings.Split(val, ",")
		if len(parts) != 2 {
			return 0, fmt.Errorf("auto background mode knob value is not in expected format: {priority_threshold},{percent_utilization}")
		}
		priorityThreshold, err1 := strconv.ParseInt(parts[0], 10, 64)
		utilizationPercent, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil ||
			priorityThreshold < 0 || priorityThreshold > int64(wire.DefaultMaxPriority) ||
			utilizationPercent < 25 || utilizationPercent > 100 {
			return 0, fmt.Errorf("invalid auto background mode parameters: priority_threshold must be int [0-7], percent_utilization must be int [25-100]")
		}
		return uint64(priorityThreshold)*priorityThresholdKnobMultiplier + uint64(utilizationPercent), nil

	default:
		return 0, fmt.Errorf("string param type is not valid for knob %#x", uint64(id))
	}
}
