// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps reads NMEA fixes from a serial receiver and turns speed over
// ground into a walking-speed estimate.
package gps

import (
	nmea "github.com/adrianmo/go-nmea"
)

// metres per second in one knot
const knotToMps = 0.514444

// Fix represents a single GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // receiver date
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" valid, "V" void
}

// FixFromRMC copies the fields we use out of an RMC sentence.
func FixFromRMC(m nmea.RMC) Fix {
	return Fix{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   m.Validity,
	}
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool { return f.Validity == nmea.ValidRMC }

// SpeedMps is the speed over ground in metres per second.
func (f Fix) SpeedMps() float64 { return f.SpeedKnots * knotToMps }
