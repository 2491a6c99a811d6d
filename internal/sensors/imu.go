// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors reads body-worn motion from an MPU9250 over SPI.
package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// IMUConfig selects the chip and its accelerometer range.
type IMUConfig struct {
	SPIDevice  string // e.g. "/dev/spidev0.0"
	CSPin      string // e.g. "GPIO8"
	AccelRange byte   // 0..3 for ±2, ±4, ±8, ±16 g
}

var _ AccelReader = (*mpu9250.MPU9250)(nil)

// OpenMPU9250 initializes the MPU9250 over SPI and returns the device,
// ready to read acceleration.
func OpenMPU9250(cfg IMUConfig) (*mpu9250.MPU9250, error) {
	if cfg.AccelRange > 3 {
		return nil, fmt.Errorf("IMU: accel range %d out of 0..3", cfg.AccelRange)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.SPIDevice, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := dev.SetAccelRange(cfg.AccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", cfg.AccelRange, rangeG(cfg.AccelRange))

	if _, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: IMU self-test failed: %v", err)
	}

	// Offsets are measured with the device still; ask the wearer to stand.
	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: IMU calibration failed: %v", err)
	} else {
		log.Printf("IMU calibration complete")
	}
	return dev, nil
}

func rangeG(r byte) int { return 2 << r }
