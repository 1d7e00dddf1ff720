package controller

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// SerialPortNone is the placeholder port offered when running without
// hardware attached.
const SerialPortNone = "NONE"

// ErrNoUSBSerial is returned by GetSerialPorts when nothing is plugged in.
var ErrNoUSBSerial = errors.New("no USB serial ports found")

// GetSerialPorts lists the serial ports a target could be attached to.
func GetSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("error listing serial ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, ErrNoUSBSerial
	}
	return ports, nil
}
