package devices

import (
	"time"
)

// DeviceEventType represents what happened under the mount root
type DeviceEventType string

const (
	DeviceAdded   DeviceEventType = "added"
	DeviceRemoved DeviceEventType = "removed"
)

// DeviceEvent is emitted after the device list changed
type DeviceEvent struct {
	Path      string
	EventType DeviceEventType
	Timestamp time.Time
}
