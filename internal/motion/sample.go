// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"context"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a device-frame vector in units of g, suitable for JSON and MQTT.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// R3 converts to a gonum vector for math.
func (v Vec3) R3() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// FromR3 converts a gonum vector back to the wire type.
func FromR3(v r3.Vec) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// Sample is one motion reading as delivered by the platform: gravity and
// user acceleration separated, both in device coordinates.
type Sample struct {
	Gravity   Vec3      `json:"gravity"`
	UserAccel Vec3      `json:"user_accel"`
	Time      time.Time `json:"time"`
}

// Source is anything that produces timestamped motion samples at a fixed
// rate: a phone bridged over MQTT, a body-worn IMU, a replay, a mock.
// Next blocks until a sample is available and returns io.EOF once the
// stream has ended.
type Source interface {
	Next(ctx context.Context) (Sample, error)
}
