package snapshot

import (
	"fmt"

	"github.com/cwbudde/vkprobe/internal/vk"
)

// Change describes how one device index differs between two snapshots.
type Change struct {
	Index  uint32   `json:"index"`
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// Report lists the device-level differences between two snapshots.
type Report struct {
	Added   []Device `json:"added"`
	Removed []Device `json:"removed"`
	Changed []Change `json:"changed"`
}

// Identical reports whether the compared snapshots described the same
// devices.
func (r *Report) Identical() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// Diff compares two snapshots device by device, keyed by index. Devices
// only present in a are reported as removed, devices only present in b as
// added.
func Diff(a, b *Snapshot) *Report {
	r := &Report{}
	common := min(len(a.Devices), len(b.Devices))
	for i := 0; i < common; i++ {
		fields := diffDevice(a.Devices[i], b.Devices[i])
		if len(fields) > 0 {
			r.Changed = append(r.Changed, Change{
				Index:  a.Devices[i].Index,
				Name:   b.Devices[i].Properties.DeviceName,
				Fields: fields,
			})
		}
	}
	r.Removed = append(r.Removed, a.Devices[common:]...)
	r.Added = append(r.Added, b.Devices[common:]...)
	return r
}

func diffDevice(a, b Device) []string {
	fields := diffProperties(a.Properties, b.Properties)
	fields = append(fields, diffMemory(a.Memory, b.Memory)...)
	fields = append(fields, diffQueueFamilies(a.QueueFamilies, b.QueueFamilies)...)
	return fields
}

func diffProperties(a, b vk.DeviceProperties) []string {
	var fields []string
	if a.DeviceName != b.DeviceName {
		fields = append(fields, fmt.Sprintf("deviceName: %q -> %q", a.DeviceName, b.DeviceName))
	}
	if a.DeviceType != b.DeviceType {
		fields = append(fields, fmt.Sprintf("deviceType: %s -> %s", a.DeviceType, b.DeviceType))
	}
	if a.APIVersion != b.APIVersion {
		fields = append(fields, fmt.Sprintf("apiVersion: %s -> %s", a.APIVersion, b.APIVersion))
	}
	if a.DriverVersion != b.DriverVersion {
		fields = append(fields, fmt.Sprintf("driverVersion: %#x -> %#x", a.DriverVersion, b.DriverVersion))
	}
	if a.VendorID != b.VendorID || a.DeviceID != b.DeviceID {
		fields = append(fields, fmt.Sprintf("pciID: [%04x:%04x] -> [%04x:%04x]", a.VendorID, a.DeviceID, b.VendorID, b.DeviceID))
	}
	return fields
}

func diffMemory(a, b vk.MemoryProperties) []string {
	var fields []string
	if len(a.Heaps) != len(b.Heaps) {
		fields = append(fields, fmt.Sprintf("memory heaps: %d -> %d", len(a.Heaps), len(b.Heaps)))
	} else {
		for i := range a.Heaps {
			if a.Heaps[i] != b.Heaps[i] {
				fields = append(fields, fmt.Sprintf("heap %d: 0x%x %q -> 0x%x %q",
					i, a.Heaps[i].Size, a.Heaps[i].Flags, b.Heaps[i].Size, b.Heaps[i].Flags))
			}
		}
	}
	if len(a.Types) != len(b.Types) {
		fields = append(fields, fmt.Sprintf("memory types: %d -> %d", len(a.Types), len(b.Types)))
	} else {
		for i := range a.Types {
			if a.Types[i] != b.Types[i] {
				fields = append(fields, fmt.Sprintf("type %d: %q (heap %d) -> %q (heap %d)",
					i, a.Types[i].PropertyFlags, a.Types[i].HeapIndex, b.Types[i].PropertyFlags, b.Types[i].HeapIndex))
			}
		}
	}
	return fields
}

func diffQueueFamilies(a, b []vk.QueueFamilyProperties) []string {
	if len(a) != len(b) {
		return []string{fmt.Sprintf("queue families: %d -> %d", len(a), len(b))}
	}
	var fields []string
	for i := range a {
		if a[i] != b[i] {
			fields = append(fields, fmt.Sprintf("queue family %d: %q -> %q",
				i, familyLabel(a[i]), familyLabel(b[i])))
		}
	}
	return fields
}

func familyLabel(f vk.QueueFamilyProperties) string {
	ts := "NO"
	if f.SupportsTimestamps {
		ts = "YES"
	}
	return fmt.Sprintf("%dx %s timestamps:%s", f.Count, f.Flags, ts)
}
