//go:build vulkan

package vk

import (
	vulkan "github.com/vulkan-go/vulkan"
)

// SystemDriver returns the loader-backed driver. The loader is resolved
// lazily in CreateInstance so that constructing the driver never touches
// the system.
func SystemDriver() Driver {
	return loaderDriver{}
}

type loaderDriver struct{}

func (loaderDriver) CreateInstance() (Instance, Result) {
	if err := vulkan.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, ErrorIncompatibleDriver
	}
	if err := vulkan.Init(); err != nil {
		return nil, ErrorInitializationFailed
	}

	// No layers, no extensions, no application info. A nil application
	// info block leaves the negotiated API version at 1.0.
	var handle vulkan.Instance
	res := vulkan.CreateInstance(&vulkan.InstanceCreateInfo{
		SType: vulkan.StructureTypeInstanceCreateInfo,
	}, nil, &handle)
	if res != vulkan.Success {
		return nil, mapResult(res)
	}
	if err := vulkan.InitInstance(handle); err != nil {
		vulkan.DestroyInstance(handle, nil)
		return nil, ErrorInitializationFailed
	}

	return &loaderInstance{handle: handle}, Success
}

type loaderInstance struct {
	handle vulkan.Instance
}

func (in *loaderInstance) PhysicalDeviceCount() (uint32, Result) {
	var count uint32
	res := vulkan.EnumeratePhysicalDevices(in.handle, &count, nil)
	if res != vulkan.Success {
		return 0, mapResult(res)
	}
	return count, Success
}

func (in *loaderInstance) PhysicalDevices(buf []PhysicalDevice) (uint32, Result) {
	if len(buf) == 0 {
		return 0, Success
	}
	count := uint32(len(buf))
	handles := make([]vulkan.PhysicalDevice, len(buf))
	res := vulkan.EnumeratePhysicalDevices(in.handle, &count, handles)
	// Incomplete means more devices exist than the buffer holds; the
	// requested count was still filled, so it is not a failure here.
	if res != vulkan.Success && res != vulkan.Incomplete {
		return 0, mapResult(res)
	}
	if count > uint32(len(buf)) {
		count = uint32(len(buf))
	}
	for i := uint32(0); i < count; i++ {
		buf[i] = &loaderDevice{handle: handles[i]}
	}
	return count, Success
}

func (in *loaderInstance) Destroy() {
	vulkan.DestroyInstance(in.handle, nil)
}

type loaderDevice struct {
	handle vulkan.PhysicalDevice
}

func (dev *loaderDevice) Properties() (DeviceProperties, Result) {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(dev.handle, &props)
	props.Deref()
	return DeviceProperties{
		APIVersion:    Version(props.ApiVersion),
		DriverVersion: props.DriverVersion,
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		DeviceType:    PhysicalDeviceType(props.DeviceType),
		DeviceName:    vulkan.ToString(props.DeviceName[:]),
	}, Success
}

func (dev *loaderDevice) MemoryProperties() (MemoryProperties, Result) {
	var mem vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(dev.handle, &mem)
	mem.Deref()

	out := MemoryProperties{
		Types: make([]MemoryType, 0, mem.MemoryTypeCount),
		Heaps: make([]MemoryHeap, 0, mem.MemoryHeapCount),
	}
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		t := mem.MemoryTypes[i]
		t.Deref()
		out.Types = append(out.Types, MemoryType{
			PropertyFlags: mapMemoryPropertyFlags(t.PropertyFlags),
			HeapIndex:     t.HeapIndex,
		})
	}
	for i := uint32(0); i < mem.MemoryHeapCount; i++ {
		h := mem.MemoryHeaps[i]
		h.Deref()
		out.Heaps = append(out.Heaps, MemoryHeap{
			Size:  uint64(h.Size),
			Flags: mapMemoryHeapFlags(h.Flags),
		})
	}
	return out, Success
}

func (dev *loaderDevice) QueueFamilyCount() (uint32, Result) {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(dev.handle, &count, nil)
	return count, Success
}

func (dev *loaderDevice) QueueFamilies(buf []QueueFamilyProperties) (uint32, Result) {
	if len(buf) == 0 {
		return 0, Success
	}
	count := uint32(len(buf))
	families := make([]vulkan.QueueFamilyProperties, len(buf))
	vulkan.GetPhysicalDeviceQueueFamilyProperties(dev.handle, &count, families)
	if count > uint32(len(buf)) {
		count = uint32(len(buf))
	}
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		buf[i] = QueueFamilyProperties{
			Flags:              mapQueueFlags(families[i].QueueFlags),
			Count:              families[i].QueueCount,
			SupportsTimestamps: families[i].TimestampValidBits != 0,
		}
	}
	return count, Success
}

// mapResult translates a loader status by name; the numeric values of the
// two enumerations disagree (the loader's NOT_READY is 1, which here means
// UNSUPPORTED). FeatureNotPresent lands on Unsupported, the nearest status
// this enumeration can express. Anything else passes through numerically;
// no remaining loader code collides with a named value here.
func mapResult(res vulkan.Result) Result {
	switch res {
	case vulkan.Success:
		return Success
	case vulkan.NotReady:
		return NotReady
	case vulkan.Timeout:
		return Timeout
	case vulkan.EventSet:
		return EventSet
	case vulkan.EventReset:
		return EventReset
	case vulkan.Incomplete:
		return Incomplete
	case vulkan.ErrorOutOfHostMemory:
		return ErrorOutOfHostMemory
	case vulkan.ErrorOutOfDeviceMemory:
		return ErrorOutOfDeviceMemory
	case vulkan.ErrorInitializationFailed:
		return ErrorInitializationFailed
	case vulkan.ErrorDeviceLost:
		return ErrorDeviceLost
	case vulkan.ErrorMemoryMapFailed:
		return ErrorMemoryMapFailed
	case vulkan.ErrorLayerNotPresent:
		return ErrorLayerNotPresent
	case vulkan.ErrorExtensionNotPresent:
		return ErrorExtensionNotPresent
	case vulkan.ErrorFeatureNotPresent:
		return Unsupported
	case vulkan.ErrorIncompatibleDriver:
		return ErrorIncompatibleDriver
	default:
		return Result(res)
	}
}

// mapQueueFlags translates loader queue capabilities. TRANSFER is reported
// as DMA and SPARSE_BINDING as SPARSE; any capability beyond those four is
// folded into the extension bit.
func mapQueueFlags(f vulkan.QueueFlags) QueueFlags {
	known := vulkan.QueueFlags(vulkan.QueueGraphicsBit) |
		vulkan.QueueFlags(vulkan.QueueComputeBit) |
		vulkan.QueueFlags(vulkan.QueueTransferBit) |
		vulkan.QueueFlags(vulkan.QueueSparseBindingBit)

	var out QueueFlags
	if f&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 {
		out |= QueueGraphics
	}
	if f&vulkan.QueueFlags(vulkan.QueueComputeBit) != 0 {
		out |= QueueCompute
	}
	if f&vulkan.QueueFlags(vulkan.QueueTransferBit) != 0 {
		out |= QueueDMA
	}
	if f&vulkan.QueueFlags(vulkan.QueueSparseBindingBit) != 0 {
		out |= QueueSparse
	}
	if f&^known != 0 {
		out |= QueueExtended
	}
	return out
}

// mapMemoryPropertyFlags translates loader memory type attributes into the
// legacy mask. A type with no host access maps to the zero (device-only)
// mask. Coherency and caching are attributes the legacy mask states in the
// negative, so they invert, and only apply to host-visible types.
// WRITE_COMBINED has no loader source and is never set.
func mapMemoryPropertyFlags(f vulkan.MemoryPropertyFlags) MemoryPropertyFlags {
	var out MemoryPropertyFlags
	if f&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit) != 0 {
		out |= MemoryPropertyHostVisible
		if f&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostCoherentBit) == 0 {
			out |= MemoryPropertyHostNonCoherent
		}
		if f&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostCachedBit) == 0 {
			out |= MemoryPropertyHostUncached
		}
	}
	if f&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyLazilyAllocatedBit) != 0 {
		out |= MemoryPropertyLazilyAllocated
	}
	return out
}

// mapMemoryHeapFlags marks heaps the loader does not consider device-local
// as host-local, which is how the legacy mask describes them.
func mapMemoryHeapFlags(f vulkan.MemoryHeapFlags) MemoryHeapFlags {
	if f&vulkan.MemoryHeapFlags(vulkan.MemoryHeapDeviceLocalBit) == 0 {
		return MemoryHeapHostLocal
	}
	return 0
}
