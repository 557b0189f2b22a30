package models

import (
	"strings"
	"time"
)

// ConnectionKind is the transport a device is attached through
type ConnectionKind string

const (
	ConnectionUSB     ConnectionKind = "usb"
	ConnectionNetwork ConnectionKind = "network"
)

type Application struct {
	PackageID string `json:"package_id"`
}

type Device struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	Connection   ConnectionKind    `json:"connection"`
	State        string            `json:"state,omitempty"` // device, offline, unauthorized
	Attributes   map[string]string `json:"attributes,omitempty"`
	Applications []Application     `json:"applications"`
	Warning      string            `json:"warning,omitempty"` // set when the app listing failed
}

// Snapshot is the immutable result of one successful refresh.
// Consumers must treat it as read-only once it has been published.
type Snapshot struct {
	ID          string    `json:"id"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Devices     []Device  `json:"devices"`
}

// EmptySnapshot is what the catalog holds before the first refresh
func EmptySnapshot() *Snapshot {
	return &Snapshot{Devices: []Device{}}
}

// Device returns the device with the given id
func (s *Snapshot) Device(id string) (Device, bool) {
	if s == nil {
		return Device{}, false
	}
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// Application returns the package on the given device
func (d Device) Application(packageID string) (Application, bool) {
	for _, app := range d.Applications {
		if app.PackageID == packageID {
			return app, true
		}
	}
	return Application{}, false
}

// FilterApplications returns the packages whose id contains query,
// case-insensitively. An empty query matches everything.
func (d Device) FilterApplications(query string) []Application {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]Application, 0, len(d.Applications))
	for _, app := range d.Applications {
		if query == "" || strings.Contains(strings.ToLower(app.PackageID), query) {
			out = append(out, app)
		}
	}
	return out
}
