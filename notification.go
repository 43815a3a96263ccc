package apns

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/takara-systems/apns/notification"
	"github.com/takara-systems/apns/notification/priority"
)

// topicInference lists the apns-push-type values APNs can tell just from
// the topic suffix a caller attaches to it. Every other push type has no
// reserved suffix: alert and background are inferred from the payload, and
// the rest (controls, liveactivity, location, mdm, pushtotalk, widgets)
// must be set on Notification.Type explicitly.
var topicInference = []struct {
	suffix string
	typ    notification.PushType
}{
	{".voip", notification.Voip},
	{".complication", notification.Complication},
	{".pushkit.fileprovider", notification.Fileprovider},
}

// Notification is a single request to deliver a Payload to one device
// token, together with the headers that accompany the APNs HTTP/2 request.
type Notification struct {
	// Topic is the apns-topic header value: the app's bundle ID, with a
	// push-kit suffix appended (".voip", ".complication", or
	// ".pushkit.fileprovider") when the notification targets one of those
	// extensions.
	Topic string

	// DeviceToken is the hex-encoded device token the notification is sent to.
	DeviceToken string

	// Type sets the apns-push-type header explicitly. Leave it empty to
	// let EffectivePushType infer it from Topic and Payload; set it only
	// for the push types a topic suffix can't express (alert, background,
	// controls, liveactivity, location, mdm, pushtotalk, widgets) or to
	// override what would otherwise be inferred.
	Type notification.PushType

	// Payload is the JSON body describing the notification. Required for
	// the alert and background push types (including a bare background
	// refresh); Validate accepts a nil Payload for every other push type.
	Payload *Payload

	// Priority is the apns-priority header value. Priority.None omits the
	// header so APNs applies its own default.
	Priority priority.Priority

	// Expiration is the apns-expiration header value. A nil Expiration
	// omits the header, telling APNs not to store the notification for
	// later delivery if the device is offline.
	Expiration *notification.EpochTime

	// CollapseID, if non-empty, becomes the apns-collapse-id header,
	// letting a later notification replace an undelivered earlier one.
	CollapseID string

	// APNsID, if non-empty, becomes the apns-id header. It must be a
	// canonical UUID; when empty, the Dispatcher generates a random UUID
	// for the header.
	APNsID string
}

// EffectivePushType resolves the apns-push-type header value for the
// notification:
//
//  1. Type, if the caller set it, always wins.
//  2. Otherwise, a recognized Topic suffix (voip, complication,
//     fileprovider) determines it.
//  3. Otherwise, Payload decides: anything with a visible alert, badge, or
//     sound is "alert"; everything else, including a bare
//     content-available wakeup, is "background".
func (n *Notification) EffectivePushType() notification.PushType {
	if n.Type != "" {
		return n.Type
	}
	for _, candidate := range topicInference {
		if strings.HasSuffix(n.Topic, candidate.suffix) {
			return candidate.typ
		}
	}
	if n.Payload != nil && n.Payload.APS.HasUserContent() {
		return notification.Alert
	}
	return notification.Background
}

// Validate checks that the notification carries everything required to
// send it, returning a descriptive error for the first problem found.
func (n *Notification) Validate() error {
	if n.Topic == "" {
		return fmt.Errorf("Topic is required")
	}
	if n.DeviceToken == "" {
		return fmt.Errorf("DeviceToken is required")
	}
	if n.Type != "" && !notification.Valid[n.Type] {
		return fmt.Errorf("invalid apns-push-type: %s", n.Type)
	}
	if n.APNsID != "" {
		if _, err := uuid.Parse(n.APNsID); err != nil {
			return fmt.Errorf("invalid APNsID: %s", n.APNsID)
		}
	}
	if !n.Priority.Valid() {
		return fmt.Errorf("invalid apns-priority: %d", n.Priority)
	}

	switch n.EffectivePushType() {
	case notification.Alert, notification.Background:
		if n.Payload == nil {
			return fmt.Errorf("Payload is required for %s push type", n.EffectivePushType())
		}
	}

	if n.Payload != nil {
		if err := n.Payload.APS.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Clone returns a deep-enough copy of the notification for safe reuse
// across concurrent sends: the Payload pointer is replaced with a copy so a
// caller mutating one Notification's payload after submission cannot race
// with an in-flight send of another.
func (n *Notification) Clone() *Notification {
	clone := *n
	if n.Payload != nil {
		p := *n.Payload
		clone.Payload = &p
	}
	if n.Expiration != nil {
		e := *n.Expiration
		clone.Expiration = &e
	}
	return &clone
}
