// Package priority defines the apns-priority header values.
package priority

import "strconv"

// Priority is the delivery priority APNs attaches to a push.
type Priority int

const (
	// None leaves the header off; APNs falls back to its own default (10).
	None Priority = 0
	// PowerOnly only wakes a device that currently has power.
	PowerOnly Priority = 1
	// Conserve may be delayed on a low-power device.
	Conserve Priority = 5
	// Immediate wakes the device right away.
	Immediate Priority = 10
)

// Valid reports whether p is one of the four priorities APNs documents.
func (p Priority) Valid() bool {
	switch p {
	case None, PowerOnly, Conserve, Immediate:
		return true
	default:
		return false
	}
}

// String renders p as the apns-priority header value, or "" for None (or
// any other value the header should be omitted for), telling the caller
// to leave the header off entirely.
func (p Priority) String() string {
	if !p.Valid() || p == None {
		return ""
	}
	return strconv.Itoa(int(p))
}
