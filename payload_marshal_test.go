//go:build !use_std_json
// +build !use_std_json

package apns_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/takara-systems/apns"
	"github.com/takara-systems/apns/payload"
)

// The hand-rolled encoder and the encoding/json path must describe the
// same object for any payload; only byte order may differ where map
// iteration is involved.
func TestMarshalFastAgreesWithStandardEncoder(t *testing.T) {
	tests := []struct {
		name string
		in   apns.Payload
	}{
		{
			name: "empty",
			in:   apns.Payload{},
		},
		{
			name: "alert with localization",
			in: apns.Payload{APS: payload.APS{
				Alert: payload.Alert{
					TitleLocKey:  "ORDER_TITLE",
					TitleLocArgs: []string{"#8812"},
					LocKey:       "ORDER_BODY",
					LocArgs:      []string{"8812", "tomorrow"},
				},
				Badge: 7,
			}},
		},
		{
			name: "background refresh with custom data",
			in: apns.Payload{
				APS: payload.APS{ContentAvailable: 1},
				CustomData: map[string]any{
					"cursor":  "c-114",
					"full":    false,
					"retries": 2,
				},
			},
		},
		{
			name: "critical sound",
			in: apns.Payload{APS: payload.APS{
				Alert: "Water leak detected",
				Sound: &payload.Sound{Name: "siren.aiff", Critical: 1, Volume: 1.0},
			}},
		},
		{
			name: "live activity",
			in: apns.Payload{APS: payload.APS{
				Event:          "end",
				DismissalDate:  1_750_000_000,
				AttributesType: "RideAttributes",
				Attributes:     map[string]any{"ride_id": "r-2207"},
				ContentState:   map[string]any{"fare": 18.5, "done": true},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fast, err := tt.in.MarshalJSONFast()
			if err != nil {
				t.Fatalf("MarshalJSONFast: %v", err)
			}
			std, err := tt.in.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if diff := cmp.Diff(asJSONValue(t, std), asJSONValue(t, fast)); diff != "" {
				t.Errorf("fast encoder diverges from encoding/json (-std +fast):\n%s\nfast: %s\nstd:  %s", diff, fast, std)
			}
		})
	}
}

func TestMarshalFastExactBytes(t *testing.T) {
	tests := []struct {
		name string
		in   apns.Payload
		want string
	}{
		{
			name: "bare aps",
			in:   apns.Payload{},
			want: `{"aps":{}}`,
		},
		{
			name: "field order is fixed",
			in: apns.Payload{APS: payload.APS{
				Alert: "back in stock",
				Badge: 3,
				Sound: "ding.aiff",
			}},
			want: `{"aps":{"alert":"back in stock","badge":3,"sound":"ding.aiff"}}`,
		},
		{
			name: "single custom key follows aps",
			in: apns.Payload{
				APS:        payload.APS{ContentAvailable: 1},
				CustomData: map[string]any{"job_id": "j-41"},
			},
			want: `{"aps":{"content-available":1},"job_id":"j-41"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.MarshalJSONFast()
			if err != nil {
				t.Fatalf("MarshalJSONFast: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSONFast() = %s, want %s", got, tt.want)
			}
		})
	}
}

// The fast path must drop a custom "aps" entry the same way the standard
// path does, rather than emitting the key twice.
func TestMarshalFastDropsCustomAPSKey(t *testing.T) {
	p := apns.Payload{
		APS:        payload.APS{Alert: "real"},
		CustomData: map[string]any{"aps": "imposter"},
	}
	got, err := p.MarshalJSONFast()
	if err != nil {
		t.Fatalf("MarshalJSONFast: %v", err)
	}
	if n := bytes.Count(got, []byte(`"aps"`)); n != 1 {
		t.Errorf("expected exactly one aps key, found %d in %s", n, got)
	}
	if want := `{"aps":{"alert":"real"}}`; string(got) != want {
		t.Errorf("MarshalJSONFast() = %s, want %s", got, want)
	}
}

// The returned bytes must survive a subsequent encode: they may not alias
// the pooled scratch buffer.
func TestMarshalFastResultDoesNotAliasPool(t *testing.T) {
	first := apns.Payload{
		APS:        payload.APS{Alert: "one"},
		CustomData: map[string]any{"n": 1},
	}
	second := apns.Payload{
		APS:        payload.APS{Alert: "a much longer alert string to force buffer reuse"},
		CustomData: map[string]any{"n": 2, "extra": "padding-padding-padding"},
	}

	got, err := first.MarshalJSONFast()
	if err != nil {
		t.Fatalf("MarshalJSONFast: %v", err)
	}
	snapshot := append([]byte(nil), got...)

	if _, err := second.MarshalJSONFast(); err != nil {
		t.Fatalf("MarshalJSONFast: %v", err)
	}
	if !bytes.Equal(got, snapshot) {
		t.Errorf("result mutated by a later encode:\n was: %s\n now: %s", snapshot, got)
	}
}
