// Package apns provides a client for sending notifications to the Apple
// Push Notification service (APNs) over its HTTP/2 provider API.
package apns

import (
	"bytes"
	"encoding/json"
	"maps"

	"github.com/takara-systems/apns/payload"
)

// Payload represents the JSON payload of an APNs notification.
// It consists of the standard `aps` dictionary and any custom data.
//
// For more details, see the Apple Developer Documentation:
// https://developer.apple.com/documentation/usernotifications/generating-a-remote-notification
type Payload struct {
	// APS is the Apple-defined dictionary that contains notification-specific data.
	APS payload.APS `json:"aps"`

	// CustomData is a map for any app-specific custom data.
	// The keys and values in this map will be merged at the root level of the
	// JSON payload, alongside the `aps` dictionary. A "aps" key here is
	// discarded: the APS field always wins.
	CustomData map[string]any `json:",inline"`
}

// MarshalJSON implements the `json.Marshaler` interface.
// It customizes the JSON output by merging the `APS` dictionary and the `CustomData`
// map at the root level of the payload. This is necessary because the `json:",inline"`
// struct tag does not work as expected with an embedded struct.
func (p *Payload) MarshalJSON() ([]byte, error) {
	merged := map[string]any{"aps": p.APS}
	if len(p.CustomData) > 0 {
		merged = maps.Clone(p.CustomData)
		merged["aps"] = p.APS
	}

	// An Encoder rather than json.Marshal so non-ASCII and the HTML-special
	// characters (<, >, &) go over the wire as-is. APNs consumes raw JSON,
	// not a script tag, so the html/template-oriented default escaping of
	// encoding/json only costs bytes here.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(merged); err != nil {
		return nil, err
	}
	// json.Encoder.Encode always appends a trailing newline; APNs payloads
	// must not carry one.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Encode renders the payload as compact, non-HTML-escaped UTF-8 JSON, the
// exact bytes a Dispatcher puts on the wire under the default encoder.
func (p *Payload) Encode() ([]byte, error) {
	return p.MarshalJSON()
}
