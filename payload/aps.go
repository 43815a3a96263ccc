// Package payload builds the JSON body APNs expects for a notification
// request: the `aps` dictionary plus whatever custom keys the app defines
// alongside it.
package payload

import (
	"errors"
	"fmt"

	"github.com/takara-systems/apns/notification"
	"github.com/takara-systems/apns/payload/interruptionlevel"
)

// APS is the `aps` dictionary APNs reads to decide how to present a
// notification. Everything outside it is the app's own business and is
// carried unmodified by Payload.
//
// https://developer.apple.com/documentation/usernotifications/sending-notification-requests-to-apns
type APS struct {
	// Alert is either a plain string or an Alert/*Alert dictionary.
	Alert any `json:"alert,omitempty"`

	// Badge is the integer to show on the app icon; 0 clears it.
	Badge any `json:"badge,omitempty"`

	// Sound names a bundled sound file, or carries a Sound/*Sound
	// dictionary for a critical alert.
	Sound any `json:"sound,omitempty"`

	// ContentAvailable, set to the integer 1, wakes the app in the
	// background with no visible alert.
	ContentAvailable any `json:"content-available,omitempty"`

	// MutableContent, set to the integer 1, routes the notification
	// through a Notification Service App Extension before display.
	MutableContent any `json:"mutable-content,omitempty"`

	// Category selects a registered set of notification actions.
	Category string `json:"category,omitempty"`

	// ThreadID groups related notifications together in the UI.
	ThreadID string `json:"thread-id,omitempty"`

	// InterruptionLevel controls how assertively the notification is
	// delivered (passive through critical).
	InterruptionLevel interruptionlevel.InterruptionLevel `json:"interruption-level,omitempty"`

	// RelevanceScore orders notifications within a Notification Summary.
	// Validate rejects a score outside [0.0, 1.0] for standard
	// notifications; Live Activities may exceed 1.0.
	RelevanceScore any `json:"relevance-score,omitempty"`

	// Live Activity fields. StaleDate/Timestamp/DismissalDate are all
	// unix-second epoch values; ContentState/Attributes carry the
	// activity's dynamic and static data respectively.
	StaleDate       *notification.EpochTime `json:"stale-date,omitempty"`
	FilterCriteria  string                  `json:"filter-criteria,omitempty"`
	Timestamp       *notification.EpochTime `json:"timestamp,omitempty"`
	TargetContentID string                  `json:"target-content-id,omitempty"`
	ContentState    map[string]any          `json:"content-state,omitempty"`
	Event           string                  `json:"event,omitempty"`
	DismissalDate   int64                   `json:"dismissal-date,omitempty"`
	AttributesType  string                  `json:"attributes-type,omitempty"`
	Attributes      map[string]any          `json:"attributes,omitempty"`
}

// HasUserContent reports whether the dictionary carries anything a user
// would see or hear: an alert, a badge change, or a sound. It does not
// count a silent content-available wakeup.
func (aps *APS) HasUserContent() bool {
	return aps.Alert != nil || aps.Badge != nil || aps.Sound != nil
}

// isLiveActivityUpdate reports whether this dictionary carries the
// start/update/end data for a Live Activity rather than a standard
// notification.
func (aps *APS) isLiveActivityUpdate() bool {
	return len(aps.ContentState) > 0 || len(aps.Attributes) > 0
}

// Validate rejects an APS dictionary APNs would bounce: an empty
// dictionary, a field holding the wrong Go type, or a value outside its
// documented range.
func (aps *APS) Validate() error {
	hasStandardFields := aps.HasUserContent() || aps.ContentAvailable != nil || aps.MutableContent != nil
	isLiveActivity := aps.isLiveActivityUpdate()

	if !hasStandardFields && !isLiveActivity {
		return errors.New("aps dictionary must not be empty")
	}

	for _, check := range []func() error{
		aps.validateAlert,
		aps.validateBadge,
		aps.validateSound,
		aps.validateContentAvailable,
		aps.validateMutableContent,
		aps.validateInterruptionLevel,
		aps.validateEvent,
		func() error { return aps.validateRelevanceScore(isLiveActivity) },
	} {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}

func (aps *APS) validateAlert() error {
	if aps.Alert == nil {
		return nil
	}
	switch aps.Alert.(type) {
	case string, Alert, *Alert:
		return nil
	default:
		return fmt.Errorf("invalid type for aps.Alert: must be string, Alert, or *Alert")
	}
}

func (aps *APS) validateBadge() error {
	if aps.Badge == nil {
		return nil
	}
	if _, ok := aps.Badge.(int); !ok {
		return fmt.Errorf("invalid type for aps.Badge: must be an integer")
	}
	return nil
}

func (aps *APS) validateSound() error {
	switch s := aps.Sound.(type) {
	case nil, string:
		return nil
	case Sound:
		return s.Validate()
	case *Sound:
		return s.Validate()
	default:
		return fmt.Errorf("invalid type for aps.Sound: must be string, Sound, or *Sound")
	}
}

func (aps *APS) validateContentAvailable() error {
	if aps.ContentAvailable == nil {
		return nil
	}
	if v, ok := aps.ContentAvailable.(int); !ok || v != 1 {
		return fmt.Errorf("invalid value for aps.ContentAvailable: must be the integer 1")
	}
	return nil
}

func (aps *APS) validateMutableContent() error {
	if aps.MutableContent == nil {
		return nil
	}
	if v, ok := aps.MutableContent.(int); !ok || v != 1 {
		return fmt.Errorf("invalid value for aps.MutableContent: must be the integer 1")
	}
	return nil
}

func (aps *APS) validateInterruptionLevel() error {
	switch aps.InterruptionLevel {
	case "", interruptionlevel.Passive, interruptionlevel.Active, interruptionlevel.TimeSensitive, interruptionlevel.Critical:
		return nil
	default:
		return fmt.Errorf("invalid value for aps.InterruptionLevel: %s", aps.InterruptionLevel)
	}
}

func (aps *APS) validateEvent() error {
	switch aps.Event {
	case "", "start", "update", "end":
		return nil
	default:
		return fmt.Errorf("invalid value for aps.Event: %s", aps.Event)
	}
}

func (aps *APS) validateRelevanceScore(isLiveActivity bool) error {
	if aps.RelevanceScore == nil {
		return nil
	}
	var score float64
	switch v := aps.RelevanceScore.(type) {
	case float64:
		score = v
	case int:
		score = float64(v)
	default:
		return fmt.Errorf("invalid type for aps.RelevanceScore: must be a number (float64 or int)")
	}
	if !isLiveActivity && (score < 0.0 || score > 1.0) {
		return fmt.Errorf("relevance-score must be between 0.0 and 1.0 for standard notifications, but got %f", score)
	}
	return nil
}
