// Package interruptionlevel defines the aps.interruption-level values.
package interruptionlevel

// InterruptionLevel tells the system how assertively to deliver a
// notification.
type InterruptionLevel string

const (
	// Passive queues the notification without lighting up the screen.
	Passive InterruptionLevel = "passive"
	// Active is the default: it lights the screen and plays a sound.
	Active InterruptionLevel = "active"
	// TimeSensitive can break through a Focus filter.
	TimeSensitive InterruptionLevel = "time-sensitive"
	// Critical bypasses the mute switch and Do Not Disturb; it requires
	// a special entitlement from Apple.
	Critical InterruptionLevel = "critical"
)
