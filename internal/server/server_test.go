package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwbudde/vkprobe/internal/report"
	"github.com/cwbudde/vkprobe/internal/snapshot"
	"github.com/cwbudde/vkprobe/internal/vk"
)

// createTestDriver builds a fake driver with one discrete and one
// integrated device.
func createTestDriver() *vk.FakeDriver {
	driver := &vk.FakeDriver{}
	driver.SetDevices(
		&vk.FakeDevice{
			Props: vk.DeviceProperties{
				APIVersion:    vk.MakeVersion(1, 0, 3),
				DriverVersion: 0x4002,
				VendorID:      0x10de,
				DeviceID:      0x1c82,
				DeviceType:    vk.DeviceTypeDiscreteGPU,
				DeviceName:    "GeForce GTX 1050 Ti",
			},
			Memory: vk.MemoryProperties{
				Types: []vk.MemoryType{
					{PropertyFlags: 0, HeapIndex: 0},
					{PropertyFlags: vk.MemoryPropertyHostVisible | vk.MemoryPropertyHostNonCoherent, HeapIndex: 1},
				},
				Heaps: []vk.MemoryHeap{
					{Size: 0xff000000},
					{Size: 0x2000000, Flags: vk.MemoryHeapHostLocal},
				},
			},
			Families: []vk.QueueFamilyProperties{
				{Flags: vk.QueueGraphics | vk.QueueCompute | vk.QueueDMA, Count: 16, SupportsTimestamps: true},
			},
		},
		&vk.FakeDevice{
			Props: vk.DeviceProperties{
				APIVersion:    vk.MakeVersion(1, 1, 0),
				DriverVersion: 0x1,
				VendorID:      0x8086,
				DeviceID:      0x5916,
				DeviceType:    vk.DeviceTypeIntegratedGPU,
				DeviceName:    "Intel(R) HD Graphics 620",
			},
			Memory: vk.MemoryProperties{
				Types: []vk.MemoryType{
					{PropertyFlags: vk.MemoryPropertyHostVisible, HeapIndex: 0},
				},
				Heaps: []vk.MemoryHeap{
					{Size: 0x80000000, Flags: vk.MemoryHeapHostLocal},
				},
			},
			Families: []vk.QueueFamilyProperties{
				{Flags: vk.QueueGraphics | vk.QueueCompute, Count: 1, SupportsTimestamps: true},
			},
		},
	)
	return driver
}

func TestServer_GetDevices(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()

	s.handleDevices(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var devices []snapshot.Device
	if err := json.NewDecoder(w.Body).Decode(&devices); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}
	if devices[0].Properties.DeviceName != "GeForce GTX 1050 Ti" {
		t.Errorf("Device 0 name mismatch: got %s", devices[0].Properties.DeviceName)
	}
	if devices[1].Index != 1 {
		t.Errorf("Device 1 index mismatch: got %d", devices[1].Index)
	}
}

func TestServer_GetDevices_MethodNotAllowed(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", nil)
	w := httptest.NewRecorder()

	s.handleDevices(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_GetDeviceByIndex(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/1", nil)
	w := httptest.NewRecorder()

	s.handleDeviceByIndex(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var device snapshot.Device
	if err := json.NewDecoder(w.Body).Decode(&device); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if device.Properties.DeviceName != "Intel(R) HD Graphics 620" {
		t.Errorf("Device name mismatch: got %s", device.Properties.DeviceName)
	}
}

func TestServer_GetDeviceByIndex_NotFound(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/5", nil)
	w := httptest.NewRecorder()

	s.handleDeviceByIndex(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_GetDeviceByIndex_Invalid(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/abc", nil)
	w := httptest.NewRecorder()

	s.handleDeviceByIndex(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_GetSnapshot(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	w := httptest.NewRecorder()

	s.handleSnapshot(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var snap snapshot.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snap.ID == "" {
		t.Error("Snapshot ID should not be empty")
	}
	if snap.Tool != "vkprobe" {
		t.Errorf("Tool mismatch: got %s", snap.Tool)
	}
	if len(snap.Devices) != 2 {
		t.Errorf("Expected 2 devices, got %d", len(snap.Devices))
	}
}

func TestServer_GetSnapshot_DriverFailure(t *testing.T) {
	driver := &vk.FakeDriver{
		Fail: map[string]vk.Result{"CreateInstance": vk.ErrorIncompatibleDriver},
	}
	s := NewServer(":8080", driver, time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	w := httptest.NewRecorder()

	s.handleSnapshot(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", w.Code)
	}

	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if body.Op != "vkCreateInstance" {
		t.Errorf("Op mismatch: got %s", body.Op)
	}
	if body.Result != "VK_ERROR_INCOMPATIBLE_DRIVER" {
		t.Errorf("Result mismatch: got %s", body.Result)
	}
	if body.Code != -8 {
		t.Errorf("Code mismatch: got %d", body.Code)
	}
}

func TestServer_GetReport(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report", nil)
	w := httptest.NewRecorder()

	s.handleReport(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type mismatch: got %s", ct)
	}

	// The endpoint must serve exactly what the CLI prints for the same
	// devices.
	var out, errw bytes.Buffer
	if code := report.Run(createTestDriver(), &out, &errw); code != 0 {
		t.Fatalf("Reference report failed: %s", errw.String())
	}
	if w.Body.String() != out.String() {
		t.Errorf("Report body mismatch:\nexpected %q\ngot      %q", out.String(), w.Body.String())
	}
}

func TestServer_GetReport_DriverFailure(t *testing.T) {
	driver := createTestDriver()
	driver.Fail = map[string]vk.Result{"PhysicalDeviceCount": vk.ErrorInitializationFailed}
	s := NewServer(":8080", driver, time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report", nil)
	w := httptest.NewRecorder()

	s.handleReport(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", w.Code)
	}

	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if body.Op != "vkEnumeratePhysicalDevices (count)" {
		t.Errorf("Op mismatch: got %s", body.Op)
	}
}

func TestServer_Healthz(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Status mismatch: got %v", body)
	}
}

func TestServer_CORSMiddleware(t *testing.T) {
	s := NewServer(":8080", createTestDriver(), time.Minute)

	handler := s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS origin header")
	}
}
