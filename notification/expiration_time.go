package notification

import (
	"strconv"
	"time"
)

// EpochTime is a unix-second timestamp, the wire format APNs uses for
// apns-expiration and the Live Activity date fields in the aps dictionary.
type EpochTime int64

// ExpirationOnce tells APNs to attempt delivery exactly once and discard
// the notification rather than store it for a device that's offline.
var ExpirationOnce = NewEpochTime(time.Time{})

// NewEpochTime converts t to an EpochTime, or to 0 (see ExpirationOnce)
// for the zero time.Time.
func NewEpochTime(t time.Time) *EpochTime {
	var v EpochTime
	if !t.IsZero() {
		v = EpochTime(t.UTC().Unix())
	}
	return &v
}

// String renders the timestamp as a decimal header value.
func (e EpochTime) String() string {
	return strconv.FormatInt(int64(e), 10)
}
