//go:build !vulkan

package vk

import "log/slog"

// SystemDriver returns a placeholder when Vulkan support is not compiled
// in. Creating an instance reports an incompatible driver, which is what a
// machine without a loader reports.
func SystemDriver() Driver {
	return stubDriver{}
}

type stubDriver struct{}

func (stubDriver) CreateInstance() (Instance, Result) {
	slog.Debug("vulkan support requires building with '-tags vulkan'")
	return nil, ErrorIncompatibleDriver
}
