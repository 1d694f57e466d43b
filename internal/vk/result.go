package vk

import "fmt"

// Result is a driver status code. Values mirror the provisional Vulkan ABI,
// with success and informational codes non-negative and errors negative.
type Result int32

const (
	Success     Result = 0
	Unsupported Result = 1
	NotReady    Result = 2
	Timeout     Result = 3
	EventSet    Result = 4
	EventReset  Result = 5
	Incomplete  Result = 6

	ErrorOutOfHostMemory      Result = -1
	ErrorOutOfDeviceMemory    Result = -2
	ErrorInitializationFailed Result = -3
	ErrorDeviceLost           Result = -4
	ErrorMemoryMapFailed      Result = -5
	ErrorLayerNotPresent      Result = -6
	ErrorExtensionNotPresent  Result = -7
	ErrorIncompatibleDriver   Result = -8
)

// String returns the VK_* symbol for r. Codes outside the known set render
// as "<unknown VkResult>".
func (r Result) String() string {
	switch r {
	case Success:
		return "VK_SUCCESS"
	case Unsupported:
		return "VK_UNSUPPORTED"
	case NotReady:
		return "VK_NOT_READY"
	case Timeout:
		return "VK_TIMEOUT"
	case EventSet:
		return "VK_EVENT_SET"
	case EventReset:
		return "VK_EVENT_RESET"
	case Incomplete:
		return "VK_INCOMPLETE"
	case ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	default:
		return "<unknown VkResult>"
	}
}

// QueryError reports a driver query that returned a non-success status.
type QueryError struct {
	Op     string
	Result Result
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s failed: %s (%d)", e.Op, e.Result, int32(e.Result))
}
