package vk

import (
	"fmt"
	"strings"
)

// Version is a packed API version: major in bits 22..31, minor in bits
// 12..21, patch in bits 0..11.
type Version uint32

// MakeVersion packs major, minor and patch into a Version.
func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

func (v Version) Major() uint32 { return uint32(v>>22) & 0x3FF }
func (v Version) Minor() uint32 { return uint32(v>>12) & 0x3FF }
func (v Version) Patch() uint32 { return uint32(v) & 0xFFF }

// String renders the dotted form, e.g. "1.0.3".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// PhysicalDeviceType classifies a physical device.
type PhysicalDeviceType uint32

const (
	DeviceTypeOther         PhysicalDeviceType = 0
	DeviceTypeIntegratedGPU PhysicalDeviceType = 1
	DeviceTypeDiscreteGPU   PhysicalDeviceType = 2
	DeviceTypeVirtualGPU    PhysicalDeviceType = 3
	DeviceTypeCPU           PhysicalDeviceType = 4
)

// String returns the report label for t. Values outside the enumeration
// render as "<UNKNOWN>".
func (t PhysicalDeviceType) String() string {
	switch t {
	case DeviceTypeOther:
		return "OTHER"
	case DeviceTypeIntegratedGPU:
		return "INTEGRATED_GPU"
	case DeviceTypeDiscreteGPU:
		return "DISCRETE_GPU"
	case DeviceTypeVirtualGPU:
		return "VIRTUAL_GPU"
	case DeviceTypeCPU:
		return "CPU"
	default:
		return "<UNKNOWN>"
	}
}

// DeviceProperties is the identity block of a physical device. DeviceName
// holds driver-supplied text already stripped of any NUL terminator.
type DeviceProperties struct {
	APIVersion    Version            `json:"apiVersion" yaml:"apiVersion"`
	DriverVersion uint32             `json:"driverVersion" yaml:"driverVersion"`
	VendorID      uint32             `json:"vendorId" yaml:"vendorId"`
	DeviceID      uint32             `json:"deviceId" yaml:"deviceId"`
	DeviceType    PhysicalDeviceType `json:"deviceType" yaml:"deviceType"`
	DeviceName    string             `json:"deviceName" yaml:"deviceName"`
}

// MemoryHeapFlags is a bitmask of heap attributes.
type MemoryHeapFlags uint32

// MemoryHeapHostLocal marks a heap resident in host memory.
const MemoryHeapHostLocal MemoryHeapFlags = 0x1

// String renders "HOST_LOCAL" when that bit is set and "" otherwise. Other
// bits do not contribute to the label.
func (f MemoryHeapFlags) String() string {
	if f&MemoryHeapHostLocal != 0 {
		return "HOST_LOCAL"
	}
	return ""
}

// MemoryPropertyFlags is a bitmask of memory type attributes. The zero
// value means device-only memory, so its presence can only be tested by
// comparing the whole mask.
type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceOnly        MemoryPropertyFlags = 0x0
	MemoryPropertyHostVisible       MemoryPropertyFlags = 0x1
	MemoryPropertyHostNonCoherent   MemoryPropertyFlags = 0x2
	MemoryPropertyHostUncached      MemoryPropertyFlags = 0x4
	MemoryPropertyHostWriteCombined MemoryPropertyFlags = 0x8
	MemoryPropertyLazilyAllocated   MemoryPropertyFlags = 0x10
)

// String renders the legacy label sequence: "DEVICE_ONLY" for the zero
// mask, "HOST_VISIBLE" bare, and each remaining attribute prefixed with a
// single space. A mask with host attributes but without HOST_VISIBLE keeps
// the leading space the legacy formatter produced.
func (f MemoryPropertyFlags) String() string {
	var b strings.Builder
	if f == MemoryPropertyDeviceOnly {
		b.WriteString("DEVICE_ONLY")
	}
	if f&MemoryPropertyHostVisible != 0 {
		b.WriteString("HOST_VISIBLE")
	}
	if f&MemoryPropertyHostNonCoherent != 0 {
		b.WriteString(" NON_COHERENT")
	}
	if f&MemoryPropertyHostUncached != 0 {
		b.WriteString(" UNCACHED")
	}
	if f&MemoryPropertyHostWriteCombined != 0 {
		b.WriteString(" WRITE_COMBINED")
	}
	if f&MemoryPropertyLazilyAllocated != 0 {
		b.WriteString(" LAZILY_ALLOCATED")
	}
	return b.String()
}

// MemoryHeap describes one memory heap.
type MemoryHeap struct {
	Size  uint64          `json:"size" yaml:"size"`
	Flags MemoryHeapFlags `json:"flags" yaml:"flags"`
}

// MemoryType describes one memory type and the heap it draws from.
type MemoryType struct {
	PropertyFlags MemoryPropertyFlags `json:"propertyFlags" yaml:"propertyFlags"`
	HeapIndex     uint32              `json:"heapIndex" yaml:"heapIndex"`
}

// MemoryProperties lists a device's memory types and heaps.
type MemoryProperties struct {
	Types []MemoryType `json:"types" yaml:"types"`
	Heaps []MemoryHeap `json:"heaps" yaml:"heaps"`
}

// QueueFlags is a bitmask of queue family capabilities.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueDMA      QueueFlags = 0x4
	QueueSparse   QueueFlags = 0x8
	QueueExtended QueueFlags = 0x10
)

var queueFlagNames = [...]string{"GRAPHICS", "COMPUTE", "DMA", "SPARSE", "EXT"}

// String joins the names of the set bits with "+", lowest bit first, e.g.
// "GRAPHICS+COMPUTE+DMA". Bits beyond the known set render as "<UNKNOWN>";
// the zero mask renders as "".
func (f QueueFlags) String() string {
	if f == 0 {
		return ""
	}
	names := make([]string, 0, len(queueFlagNames))
	for bit := uint(0); bit < 32; bit++ {
		if f&(1<<bit) == 0 {
			continue
		}
		if bit < uint(len(queueFlagNames)) {
			names = append(names, queueFlagNames[bit])
		} else {
			names = append(names, "<UNKNOWN>")
		}
	}
	return strings.Join(names, "+")
}

// QueueFamilyProperties describes one queue family.
type QueueFamilyProperties struct {
	Flags              QueueFlags `json:"flags" yaml:"flags"`
	Count              uint32     `json:"count" yaml:"count"`
	SupportsTimestamps bool       `json:"supportsTimestamps" yaml:"supportsTimestamps"`
}
