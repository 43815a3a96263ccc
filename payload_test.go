package apns_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/takara-systems/apns"
	"github.com/takara-systems/apns/payload"
)

// asJSONValue decodes b for semantic comparison, failing the test when the
// encoder produced invalid JSON.
func asJSONValue(t *testing.T, b []byte) any {
	t.Helper()
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("encoder produced invalid JSON: %v\nraw: %s", err, b)
	}
	return v
}

// TestPayloadEncodeExactBytes pins the wire bytes for payloads whose output
// is fully deterministic: struct fields marshal in declaration order and
// map keys sort, so these can be compared byte for byte rather than
// semantically.
func TestPayloadEncodeExactBytes(t *testing.T) {
	tests := []struct {
		name string
		in   apns.Payload
		want string
	}{
		{
			name: "bare aps object",
			in:   apns.Payload{},
			want: `{"aps":{}}`,
		},
		{
			name: "plain alert text",
			in:   apns.Payload{APS: payload.APS{Alert: "Your order shipped"}},
			want: `{"aps":{"alert":"Your order shipped"}}`,
		},
		{
			name: "structured alert keeps field order",
			in: apns.Payload{APS: payload.APS{Alert: payload.Alert{
				Title: "Delivery update",
				Body:  "Out for delivery",
			}}},
			want: `{"aps":{"alert":{"title":"Delivery update","body":"Out for delivery"}}}`,
		},
		{
			name: "boolean flags emit as the integer 1",
			in:   apns.Payload{APS: payload.APS{ContentAvailable: 1, MutableContent: 1}},
			want: `{"aps":{"content-available":1,"mutable-content":1}}`,
		},
		{
			name: "non-ascii goes out as raw utf-8",
			in:   apns.Payload{APS: payload.APS{Alert: "荷物が届きました"}},
			want: `{"aps":{"alert":"荷物が届きました"}}`,
		},
		{
			name: "html-special characters are not escaped",
			in:   apns.Payload{APS: payload.APS{Alert: `5 < 6 & 7 > 2`}},
			want: `{"aps":{"alert":"5 < 6 & 7 > 2"}}`,
		},
		{
			name: "custom keys merge at the top level",
			in: apns.Payload{
				APS:        payload.APS{ContentAvailable: 1},
				CustomData: map[string]any{"shipment_id": "sh-9917"},
			},
			want: `{"aps":{"content-available":1},"shipment_id":"sh-9917"}`,
		},
		{
			name: "custom key sorting can place keys before aps",
			in: apns.Payload{
				APS:        payload.APS{Alert: "hi"},
				CustomData: map[string]any{"account": 12},
			},
			want: `{"account":12,"aps":{"alert":"hi"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}

			again, err := tt.in.Encode()
			if err != nil {
				t.Fatalf("second Encode: %v", err)
			}
			if !bytes.Equal(got, again) {
				t.Errorf("Encode is not idempotent: first %s, second %s", got, again)
			}
		})
	}
}

// TestPayloadEncodeSemantics covers payloads with multi-key maps, where key
// order inside content-state/custom data is not pinned byte for byte.
func TestPayloadEncodeSemantics(t *testing.T) {
	tests := []struct {
		name string
		in   apns.Payload
		want string
	}{
		{
			name: "full user-visible notification",
			in: apns.Payload{
				APS: payload.APS{
					Alert: &payload.Alert{
						Title:   "Gate change",
						Body:    "Flight NH204 now boards at gate 52",
						LocKey:  "GATE_CHANGE_BODY",
						LocArgs: []string{"NH204", "52"},
					},
					Badge:    2,
					Sound:    payload.Sound{Name: "chime.aiff", Critical: 1, Volume: 0.6},
					Category: "FLIGHT_STATUS",
					ThreadID: "flight-nh204",
				},
				CustomData: map[string]any{
					"flight":   "NH204",
					"terminal": 2,
				},
			},
			want: `{
				"aps":{
					"alert":{
						"title":"Gate change",
						"body":"Flight NH204 now boards at gate 52",
						"loc-key":"GATE_CHANGE_BODY",
						"loc-args":["NH204","52"]
					},
					"badge":2,
					"sound":{"name":"chime.aiff","critical":1,"volume":0.6},
					"category":"FLIGHT_STATUS",
					"thread-id":"flight-nh204"
				},
				"flight":"NH204",
				"terminal":2
			}`,
		},
		{
			name: "live activity update",
			in: apns.Payload{
				APS: payload.APS{
					Event:           "update",
					TargetContentID: "delivery-77",
					ContentState: map[string]any{
						"stops_left": 3,
						"eta":        "12:40",
					},
				},
			},
			want: `{
				"aps":{
					"event":"update",
					"target-content-id":"delivery-77",
					"content-state":{"stops_left":3,"eta":"12:40"}
				}
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if diff := cmp.Diff(asJSONValue(t, []byte(tt.want)), asJSONValue(t, got)); diff != "" {
				t.Errorf("Encode mismatch (-want +got):\n%s\nraw: %s", diff, got)
			}
		})
	}
}

// A custom "aps" entry must never displace the real aps dictionary.
func TestPayloadEncodeCustomDataCannotShadowAPS(t *testing.T) {
	p := apns.Payload{
		APS: payload.APS{Alert: "real"},
		CustomData: map[string]any{
			"aps": "imposter",
			"seq": 1,
		},
	}
	got, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n := bytes.Count(got, []byte(`"aps"`)); n != 1 {
		t.Fatalf("expected exactly one aps key, found %d in %s", n, got)
	}
	decoded := asJSONValue(t, got).(map[string]any)
	aps, ok := decoded["aps"].(map[string]any)
	if !ok || aps["alert"] != "real" {
		t.Errorf("aps slot was shadowed by custom data: %s", got)
	}
}

// Encoding carries no whitespace anywhere, whatever the payload shape.
func TestPayloadEncodeIsCompact(t *testing.T) {
	p := apns.Payload{
		APS: payload.APS{
			Alert: payload.Alert{Title: "a", Body: "b"},
			Badge: 1,
		},
		CustomData: map[string]any{"k": []any{1, "two", true}},
	}
	got, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, got); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !bytes.Equal(compact.Bytes(), got) {
		t.Errorf("Encode output is not compact:\n got: %s\nwant: %s", got, compact.Bytes())
	}
}
