// Package sound holds the small value types Sound needs that don't belong
// on the Sound struct itself.
package sound

// AlertFlag marks whether a sound accompanies a critical alert.
type AlertFlag int

const (
	// None is a regular, non-critical sound.
	None AlertFlag = iota
	// Critical plays even when the device is muted or in Do Not Disturb.
	Critical
)
