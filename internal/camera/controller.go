// Package camera enumerates capture devices and serializes device switches.
// The actual device swap (reopening the capture pipeline) is injected glue;
// this package only owns the single-flight switching state.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrSwitchInProgress is returned when a switch is requested while one
	// is still running.
	ErrSwitchInProgress = errors.New("camera is currently switching")
	// ErrSameDevice is returned when switching to the already-selected device.
	ErrSameDevice = errors.New("already on this camera")
)

// Device is one enumerated capture device.
type Device struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SwitchFunc performs the actual device swap. It runs on a background
// goroutine; the controller clears its switching flag when it returns.
type SwitchFunc func(ctx context.Context, deviceID int) error

// ListFunc enumerates available devices.
type ListFunc func(ctx context.Context) ([]Device, error)

// Controller tracks the selected capture device and guards switches with a
// single-flight flag, mirroring the single-active-operation shape of the
// recording session.
type Controller struct {
	listFn   ListFunc
	switchFn SwitchFunc
	logger   *zap.Logger

	mu          sync.Mutex
	current     int
	isSwitching bool
}

// NewController creates a camera controller starting at the given device.
func NewController(current int, listFn ListFunc, switchFn SwitchFunc, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if listFn == nil {
		listFn = ListV4L2Devices
	}
	return &Controller{listFn: listFn, switchFn: switchFn, logger: logger, current: current}
}

// List enumerates devices and reports the current selection and switch state.
func (c *Controller) List(ctx context.Context) (devices []Device, current int, switching bool) {
	c.mu.Lock()
	current = c.current
	switching = c.isSwitching
	c.mu.Unlock()

	devices, err := c.listFn(ctx)
	if err != nil || len(devices) == 0 {
		if err != nil {
			c.logger.Warn("camera enumeration failed", zap.Error(err))
		}
		// Enumeration is best-effort; at minimum report the device in use.
		devices = []Device{{ID: current, Name: fmt.Sprintf("Camera %d", current)}}
	}
	return devices, current, switching
}

// Current returns the selected device ID.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Switch starts an asynchronous switch to the given device. It rejects a
// switch while one is in progress and a switch to the current device.
// The swap outlives the caller's request, so it runs detached from ctx.
func (c *Controller) Switch(_ context.Context, deviceID int) error {
	c.mu.Lock()
	if c.isSwitching {
		c.mu.Unlock()
		return ErrSwitchInProgress
	}
	if c.current == deviceID {
		c.mu.Unlock()
		return ErrSameDevice
	}
	c.isSwitching = true
	c.mu.Unlock()

	go func() {
		err := error(nil)
		if c.switchFn != nil {
			err = c.switchFn(context.Background(), deviceID)
		}

		c.mu.Lock()
		c.isSwitching = false
		if err == nil {
			c.current = deviceID
		}
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("camera switch failed", zap.Int("device_id", deviceID), zap.Error(err))
			return
		}
		c.logger.Info("camera switched", zap.Int("device_id", deviceID))
	}()
	return nil
}

// ListV4L2Devices enumerates cameras via v4l2-ctl, falling back to a
// /dev/video* glob when the tool is unavailable. Device order matches the
// capture indices the pipeline opens.
func ListV4L2Devices(ctx context.Context) ([]Device, error) {
	out, err := exec.CommandContext(ctx, "v4l2-ctl", "--list-devices").Output()
	if err == nil {
		if devices := parseV4L2List(string(out)); len(devices) > 0 {
			return devices, nil
		}
	}
	return globVideoDevices()
}

// parseV4L2List parses `v4l2-ctl --list-devices` output: a device name line
// followed by indented /dev/videoN node lines.
func parseV4L2List(out string) []Device {
	var devices []Device
	name := ""
	seen := map[int]bool{}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, " ") {
			name = strings.TrimSuffix(strings.TrimSpace(line), ":")
			continue
		}
		node := strings.TrimSpace(line)
		id, ok := videoNodeID(node)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		devices = append(devices, Device{ID: id, Name: fmt.Sprintf("%s (Camera %d)", name, id)})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

func globVideoDevices() ([]Device, error) {
	nodes, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	var devices []Device
	for _, node := range nodes {
		if id, ok := videoNodeID(node); ok {
			devices = append(devices, Device{ID: id, Name: fmt.Sprintf("Camera %d", id)})
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func videoNodeID(node string) (int, bool) {
	const prefix = "/dev/video"
	if !strings.HasPrefix(node, prefix) {
		return 0, false
	}
	id, err := strconv.Atoi(node[len(prefix):])
	if err != nil {
		return 0, false
	}
	return id, true
}
