package vk

import (
	"fmt"
	"sync"
)

// FakeDriver is an in-memory Driver used by tests. Configure Devices and
// Fail before first use; SetDevices swaps the device list under the lock so
// pollers can race against it safely. Journal records every boundary call
// in order.
type FakeDriver struct {
	mu sync.Mutex

	Devices []*FakeDevice

	// Fail maps a boundary operation ("CreateInstance",
	// "PhysicalDeviceCount", "PhysicalDevices") to the Result returned
	// instead of Success.
	Fail map[string]Result

	// ReportedDeviceCount overrides PhysicalDeviceCount's answer when
	// non-nil. The fill call still serves the real device list, mimicking
	// a population change between the two enumeration calls.
	ReportedDeviceCount *uint32

	Journal []string
}

func (d *FakeDriver) CreateInstance() (Instance, Result) {
	d.record("CreateInstance")
	if res, ok := d.failure("CreateInstance"); ok {
		return nil, res
	}
	return &fakeInstance{driver: d}, Success
}

// SetDevices replaces the device list.
func (d *FakeDriver) SetDevices(devs ...*FakeDevice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Devices = devs
}

func (d *FakeDriver) record(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Journal = append(d.Journal, op)
}

func (d *FakeDriver) failure(op string) (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, ok := d.Fail[op]
	return res, ok
}

type fakeInstance struct {
	driver *FakeDriver
}

func (in *fakeInstance) PhysicalDeviceCount() (uint32, Result) {
	d := in.driver
	d.record("PhysicalDeviceCount")
	if res, ok := d.failure("PhysicalDeviceCount"); ok {
		return 0, res
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ReportedDeviceCount != nil {
		return *d.ReportedDeviceCount, Success
	}
	return uint32(len(d.Devices)), Success
}

func (in *fakeInstance) PhysicalDevices(buf []PhysicalDevice) (uint32, Result) {
	d := in.driver
	d.record("PhysicalDevices")
	if res, ok := d.failure("PhysicalDevices"); ok {
		return 0, res
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := uint32(0)
	for i, dev := range d.Devices {
		if i >= len(buf) {
			break
		}
		dev.driver = d
		dev.index = i
		buf[i] = dev
		n++
	}
	return n, Success
}

func (in *fakeInstance) Destroy() {
	in.driver.record("Destroy")
}

// FakeDevice is one fake physical device. Fail injects per-query failures
// keyed by method name ("Properties", "MemoryProperties",
// "QueueFamilyCount", "QueueFamilies").
type FakeDevice struct {
	Props    DeviceProperties
	Memory   MemoryProperties
	Families []QueueFamilyProperties
	Fail     map[string]Result

	driver *FakeDriver
	index  int
}

func (dev *FakeDevice) record(op string) {
	if dev.driver != nil {
		dev.driver.record(fmt.Sprintf("%s(%d)", op, dev.index))
	}
}

func (dev *FakeDevice) Properties() (DeviceProperties, Result) {
	dev.record("Properties")
	if res, ok := dev.Fail["Properties"]; ok {
		return DeviceProperties{}, res
	}
	return dev.Props, Success
}

func (dev *FakeDevice) MemoryProperties() (MemoryProperties, Result) {
	dev.record("MemoryProperties")
	if res, ok := dev.Fail["MemoryProperties"]; ok {
		return MemoryProperties{}, res
	}
	return dev.Memory, Success
}

func (dev *FakeDevice) QueueFamilyCount() (uint32, Result) {
	dev.record("QueueFamilyCount")
	if res, ok := dev.Fail["QueueFamilyCount"]; ok {
		return 0, res
	}
	return uint32(len(dev.Families)), Success
}

func (dev *FakeDevice) QueueFamilies(buf []QueueFamilyProperties) (uint32, Result) {
	dev.record("QueueFamilies")
	if res, ok := dev.Fail["QueueFamilies"]; ok {
		return 0, res
	}
	n := uint32(0)
	for i, fam := range dev.Families {
		if i >= len(buf) {
			break
		}
		buf[i] = fam
		n++
	}
	return n, Success
}
