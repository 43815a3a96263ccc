package apns

import (
	"fmt"
	"time"

	"github.com/takara-systems/apns/conn"
)

// ErrConnectionFailed is the transport-level error surfaced when
// connecting to APNs fails after conn.MaxConnectionRetries attempts. It is
// the conn package's own sentinel, re-exported so callers can match it with
// errors.Is without importing conn.
var ErrConnectionFailed = conn.ErrConnectionFailed

// Reason is one of the closed set of failure strings APNs returns in the
// "reason" field of a non-200 response body.
type Reason string

// Bad-payload reasons.
const (
	ReasonPayloadEmpty      Reason = "PayloadEmpty"
	ReasonPayloadTooLarge   Reason = "PayloadTooLarge"
	ReasonBadTopic          Reason = "BadTopic"
	ReasonTopicDisallowed   Reason = "TopicDisallowed"
	ReasonBadExpirationDate Reason = "BadExpirationDate"
	ReasonBadCollapseID     Reason = "BadCollapseId"
	ReasonMissingTopic      Reason = "MissingTopic"
)

// Bad-device reasons.
const (
	ReasonBadDeviceToken         Reason = "BadDeviceToken"
	ReasonDeviceTokenNotForTopic Reason = "DeviceTokenNotForTopic"
	ReasonUnregistered           Reason = "Unregistered"
	ReasonMissingDeviceToken     Reason = "MissingDeviceToken"
)

// Auth reasons.
const (
	ReasonBadCertificate              Reason = "BadCertificate"
	ReasonBadCertificateEnvironment   Reason = "BadCertificateEnvironment"
	ReasonExpiredProviderToken        Reason = "ExpiredProviderToken"
	ReasonInvalidProviderToken        Reason = "InvalidProviderToken"
	ReasonMissingProviderToken        Reason = "MissingProviderToken"
	ReasonForbidden                   Reason = "Forbidden"
	ReasonTooManyProviderTokenUpdates Reason = "TooManyProviderTokenUpdates"
)

// Protocol/internal reasons.
const (
	ReasonBadMessageID     Reason = "BadMessageId"
	ReasonBadPriority      Reason = "BadPriority"
	ReasonDuplicateHeaders Reason = "DuplicateHeaders"
	ReasonBadPath          Reason = "BadPath"
	ReasonMethodNotAllowed Reason = "MethodNotAllowed"
)

// Server reasons.
const (
	ReasonIdleTimeout         Reason = "IdleTimeout"
	ReasonShutdown            Reason = "Shutdown"
	ReasonInternalServerError Reason = "InternalServerError"
	ReasonServiceUnavailable  Reason = "ServiceUnavailable"
	ReasonTooManyRequests     Reason = "TooManyRequests"
)

// Kind classifies a Reason into the broad category described in §4.1 of
// the design, so callers can decide retry policy without enumerating every
// reason string by hand.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadPayload
	KindBadDevice
	KindAuth
	KindProtocol
	KindServer
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindBadPayload:
		return "bad-payload"
	case KindBadDevice:
		return "bad-device"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindServer:
		return "server"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

var reasonKinds = map[Reason]Kind{
	ReasonPayloadEmpty:      KindBadPayload,
	ReasonPayloadTooLarge:   KindBadPayload,
	ReasonBadTopic:          KindBadPayload,
	ReasonTopicDisallowed:   KindBadPayload,
	ReasonBadExpirationDate: KindBadPayload,
	ReasonBadCollapseID:     KindBadPayload,
	ReasonMissingTopic:      KindBadPayload,

	ReasonBadDeviceToken:         KindBadDevice,
	ReasonDeviceTokenNotForTopic: KindBadDevice,
	ReasonUnregistered:           KindBadDevice,
	ReasonMissingDeviceToken:     KindBadDevice,

	ReasonBadCertificate:              KindAuth,
	ReasonBadCertificateEnvironment:   KindAuth,
	ReasonExpiredProviderToken:        KindAuth,
	ReasonInvalidProviderToken:        KindAuth,
	ReasonMissingProviderToken:        KindAuth,
	ReasonForbidden:                   KindAuth,
	ReasonTooManyProviderTokenUpdates: KindAuth,

	ReasonBadMessageID:     KindProtocol,
	ReasonBadPriority:      KindProtocol,
	ReasonDuplicateHeaders: KindProtocol,
	ReasonBadPath:          KindProtocol,
	ReasonMethodNotAllowed: KindProtocol,

	ReasonIdleTimeout:         KindServer,
	ReasonShutdown:            KindServer,
	ReasonInternalServerError: KindServer,
	ReasonServiceUnavailable:  KindServer,
	ReasonTooManyRequests:     KindServer,
}

// Kind classifies reason into one of the broad categories above. A reason
// string APNs has not documented (or one added to the service after this
// mapping was written) classifies as KindUnknown rather than panicking --
// this library must not crash on a novel reason.
func (r Reason) Kind() Kind {
	if k, ok := reasonKinds[r]; ok {
		return k
	}
	return KindUnknown
}

// Error represents a non-200 response from the APNs server, carrying the
// typed reason and, for a 410 (Unregistered) response, the timestamp APNs
// attaches to mark when the device token became invalid.
type Error struct {
	StatusCode int
	Reason     Reason
	Timestamp  int64 // unix seconds, set only when Reason == ReasonUnregistered
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Reason == ReasonUnregistered && e.Timestamp != 0 {
		return fmt.Sprintf("apns: %s (status=%d, unregistered at %s)",
			e.Reason, e.StatusCode, time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("apns: %s (status=%d)", e.Reason, e.StatusCode)
}

// Kind classifies the error's reason; see Reason.Kind.
func (e *Error) Kind() Kind {
	return e.Reason.Kind()
}

// UnregisteredAt returns the device's unregistration time and true, or the
// zero time and false if this error is not an Unregistered error or the
// server did not include a timestamp.
func (e *Error) UnregisteredAt() (time.Time, bool) {
	if e.Reason != ReasonUnregistered || e.Timestamp == 0 {
		return time.Time{}, false
	}
	return time.Unix(e.Timestamp, 0).UTC(), true
}
