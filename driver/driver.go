// Package driver sends composed frames to light hardware.
package driver

import (
	"errors"

	"go-lightsynth/light"
)

// Driver is one light output. Send is called from the engine loop once per
// tick; it must not keep the frame.
type Driver interface {
	Send(frame light.Frame) error
	Close() error
}

// Multi fans a frame out to several drivers. A failing driver does not stop
// the others; their errors are joined.
type Multi struct {
	drivers []Driver
}

// NewMulti combines drivers, skipping nils
func NewMulti(drivers ...Driver) *Multi {
	m := &Multi{}
	for _, d := range drivers {
		if d != nil {
			m.drivers = append(m.drivers, d)
		}
	}
	return m
}

// Add appends a driver
func (m *Multi) Add(d Driver) {
	if d != nil {
		m.drivers = append(m.drivers, d)
	}
}

// Len returns the number of drivers
func (m *Multi) Len() int {
	return len(m.drivers)
}

func (m *Multi) Send(frame light.Frame) error {
	var errs []error
	for _, d := range m.drivers {
		if err := d.Send(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, d := range m.drivers {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
