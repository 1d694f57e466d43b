package vk

// Driver opens instances of an underlying Vulkan runtime. The build picks
// the implementation behind SystemDriver: the loader-backed runtime with
// '-tags vulkan', otherwise a stub that reports an incompatible driver.
type Driver interface {
	// CreateInstance connects to the driver and returns a live instance.
	// On a non-success Result the instance is nil.
	CreateInstance() (Instance, Result)
}

// Instance is a connected driver instance. Enumeration follows the
// count-then-fill protocol: query the count, size a buffer, fill it. The
// device population may change between the two calls.
type Instance interface {
	// PhysicalDeviceCount reports how many devices the driver exposes.
	PhysicalDeviceCount() (uint32, Result)

	// PhysicalDevices fills buf with at most len(buf) device handles and
	// reports how many were written.
	PhysicalDevices(buf []PhysicalDevice) (uint32, Result)

	// Destroy releases the instance. Device handles obtained from it are
	// invalid afterwards.
	Destroy()
}

// PhysicalDevice is a handle to one device, valid until the owning
// instance is destroyed. All queries are read-only.
type PhysicalDevice interface {
	Properties() (DeviceProperties, Result)
	MemoryProperties() (MemoryProperties, Result)
	QueueFamilyCount() (uint32, Result)
	QueueFamilies(buf []QueueFamilyProperties) (uint32, Result)
}
