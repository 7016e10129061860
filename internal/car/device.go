package car

import "github.com/cxd309/rgv-engine/internal/task"

// Device is the part of a port a car interacts with at its stop points.
type Device interface {
	CanSupply(m task.MaterialID) bool
	CanReceive() bool
	OnMaterialTaken() error
	OnMaterialPlaced(m task.MaterialID) error
	Reserve(m task.MaterialID) error
}

// DeviceLookup resolves a device id to the device at that station.
type DeviceLookup func(id task.DeviceID) (Device, bool)
