package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/vkprobe/internal/vk"
)

const toolName = "vkprobe"

// Device is one captured physical device.
type Device struct {
	Index         uint32                     `json:"index" yaml:"index"`
	Properties    vk.DeviceProperties        `json:"properties" yaml:"properties"`
	Memory        vk.MemoryProperties        `json:"memory" yaml:"memory"`
	QueueFamilies []vk.QueueFamilyProperties `json:"queueFamilies" yaml:"queueFamilies"`
}

// Snapshot is a point-in-time capture of every device the driver exposes.
type Snapshot struct {
	ID          string    `json:"id" yaml:"id"`
	CapturedAt  time.Time `json:"capturedAt" yaml:"capturedAt"`
	Tool        string    `json:"tool" yaml:"tool"`
	ToolVersion string    `json:"toolVersion,omitempty" yaml:"toolVersion,omitempty"`
	Devices     []Device  `json:"devices" yaml:"devices"`
}

// Capture queries every visible device and returns the collected snapshot.
// The instance is destroyed before returning, also on failure; failures are
// reported as *vk.QueryError. A device population shrink between the count
// and fill calls is logged and the shorter list captured.
func Capture(driver vk.Driver) (*Snapshot, error) {
	instance, res := driver.CreateInstance()
	if res != vk.Success {
		return nil, &vk.QueryError{Op: "vkCreateInstance", Result: res}
	}
	defer instance.Destroy()

	n, res := instance.PhysicalDeviceCount()
	if res != vk.Success {
		return nil, &vk.QueryError{Op: "vkEnumeratePhysicalDevices (count)", Result: res}
	}
	handles := make([]vk.PhysicalDevice, n)
	m, res := instance.PhysicalDevices(handles)
	if res != vk.Success {
		return nil, &vk.QueryError{Op: "vkEnumeratePhysicalDevices (data)", Result: res}
	}
	if m < n {
		slog.Warn("physical device count decreased between calls", "reported", n, "filled", m)
	}
	handles = handles[:m]

	snap := &Snapshot{
		ID:         uuid.New().String(),
		CapturedAt: time.Now().UTC(),
		Tool:       toolName,
		Devices:    make([]Device, 0, len(handles)),
	}
	for i, handle := range handles {
		dev, err := captureDevice(uint32(i), handle)
		if err != nil {
			return nil, err
		}
		snap.Devices = append(snap.Devices, dev)
	}
	return snap, nil
}

func captureDevice(idx uint32, handle vk.PhysicalDevice) (Device, error) {
	props, res := handle.Properties()
	if res != vk.Success {
		return Device{}, &vk.QueryError{Op: "vkGetPhysicalDeviceProperties", Result: res}
	}
	mem, res := handle.MemoryProperties()
	if res != vk.Success {
		return Device{}, &vk.QueryError{Op: "vkGetPhysicalDeviceMemoryProperties", Result: res}
	}
	n, res := handle.QueueFamilyCount()
	if res != vk.Success {
		return Device{}, &vk.QueryError{Op: "vkGetPhysicalDeviceQueueFamilyProperties (count)", Result: res}
	}
	families := make([]vk.QueueFamilyProperties, n)
	m, res := handle.QueueFamilies(families)
	if res != vk.Success {
		return Device{}, &vk.QueryError{Op: "vkGetPhysicalDeviceQueueFamilyProperties (values)", Result: res}
	}
	return Device{
		Index:         idx,
		Properties:    props,
		Memory:        mem,
		QueueFamilies: families[:m],
	}, nil
}

// Format selects a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath infers the encoding from a file extension, defaulting to
// JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode writes snap to w in the given format. An empty format means JSON.
func Encode(w io.Writer, snap *Snapshot, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(snap); err != nil {
			enc.Close()
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return nil
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown snapshot format %q", format)
	}
}

// Decode reads one snapshot from r in the given format. An empty format
// means JSON.
func Decode(r io.Reader, format Format) (*Snapshot, error) {
	var snap Snapshot
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	return &snap, nil
}
