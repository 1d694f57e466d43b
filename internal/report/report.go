package report

import (
	"fmt"
	"io"

	"github.com/cwbudde/vkprobe/internal/vk"
)

// Run writes the device report to out and diagnostics to errw, returning
// the process exit code: 0 on success, 1 after a fatal driver status. A
// fatal status aborts the report immediately; the instance is not
// destroyed on that path.
func Run(driver vk.Driver, out, errw io.Writer) int {
	if err := Render(driver, out, errw); err != nil {
		fmt.Fprintln(errw, err)
		return 1
	}
	return 0
}

// Render writes the device report to out, streaming as it queries. The
// shrink warning goes to errw. A failing query returns a *vk.QueryError;
// output written up to that point stays written.
func Render(driver vk.Driver, out, errw io.Writer) error {
	instance, res := driver.CreateInstance()
	if res != vk.Success {
		return &vk.QueryError{Op: "vkCreateInstance", Result: res}
	}

	n, res := instance.PhysicalDeviceCount()
	if res != vk.Success {
		return &vk.QueryError{Op: "vkEnumeratePhysicalDevices (count)", Result: res}
	}

	devices := make([]vk.PhysicalDevice, n)
	m, res := instance.PhysicalDevices(devices)
	if res != vk.Success {
		return &vk.QueryError{Op: "vkEnumeratePhysicalDevices (data)", Result: res}
	}
	if m < n {
		fmt.Fprintf(errw, "number of physical devices decreased from %d to %d!\n", n, m)
		devices = devices[:m]
	}

	fmt.Fprintf(out, "PhysicalDevices:\n")
	for i, dev := range devices {
		if err := dumpPhysicalDevice(out, uint32(i), dev); err != nil {
			return err
		}
	}

	instance.Destroy()
	return nil
}

func dumpPhysicalDevice(out io.Writer, idx uint32, dev vk.PhysicalDevice) error {
	props, res := dev.Properties()
	if res != vk.Success {
		return &vk.QueryError{Op: "vkGetPhysicalDeviceProperties", Result: res}
	}
	fmt.Fprintf(out, "  %d: \"%s\" (%s) %d.%d.%d/%#x [%04x:%04x]\n",
		idx, props.DeviceName, props.DeviceType,
		props.APIVersion.Major(), props.APIVersion.Minor(), props.APIVersion.Patch(),
		props.DriverVersion, props.VendorID, props.DeviceID)

	mem, res := dev.MemoryProperties()
	if res != vk.Success {
		return &vk.QueryError{Op: "vkGetPhysicalDeviceMemoryProperties", Result: res}
	}
	for heap := range mem.Heaps {
		fmt.Fprintf(out, "     Heap %d: 0x%x %s\n", heap, mem.Heaps[heap].Size, mem.Heaps[heap].Flags)
		for ti := range mem.Types {
			if mem.Types[ti].HeapIndex != uint32(heap) {
				continue
			}
			fmt.Fprintf(out, "       Type %d: %s\n", ti, mem.Types[ti].PropertyFlags)
		}
	}

	n, res := dev.QueueFamilyCount()
	if res != vk.Success {
		return &vk.QueryError{Op: "vkGetPhysicalDeviceQueueFamilyProperties (count)", Result: res}
	}
	families := make([]vk.QueueFamilyProperties, n)
	m, res := dev.QueueFamilies(families)
	if res != vk.Success {
		return &vk.QueryError{Op: "vkGetPhysicalDeviceQueueFamilyProperties (values)", Result: res}
	}
	for i, fam := range families[:m] {
		timestamps := "NO"
		if fam.SupportsTimestamps {
			timestamps = "YES"
		}
		fmt.Fprintf(out, "     Queue Family %d: %2dx %s timestamps:%s\n",
			i, fam.Count, fam.Flags, timestamps)
	}
	return nil
}
