package service

import (
	cronus "github.com/E3dvis/cronustraining"
)

// DeviceService passes through the device operations that live outside a
// run: range lookups and shutdown.
type DeviceService struct {
	client DeviceClient
}

func NewDeviceService(client DeviceClient) *DeviceService {
	return &DeviceService{client: client}
}

// Range returns the hardware wavelength interval of a channel, nil when
// the device cannot report it.
func (s *DeviceService) Range(channel int) *cronus.DeviceRange {
	return s.client.Range(channel)
}

// Off requests a device shutdown and reports whether it was acknowledged.
func (s *DeviceService) Off() bool {
	res := s.client.Off()
	return res != nil && res.OK
}
