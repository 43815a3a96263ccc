//go:build !use_std_json
// +build !use_std_json

package payload_test

import (
	"encoding/json"
	"testing"

	"github.com/takara-systems/apns/payload"
)

func TestAlertMarshalFast(t *testing.T) {
	tests := []struct {
		name string
		in   payload.Alert
		want string
	}{
		{
			name: "empty dictionary",
			in:   payload.Alert{},
			want: `{}`,
		},
		{
			name: "title only",
			in:   payload.Alert{Title: "Boarding now"},
			want: `{"title":"Boarding now"}`,
		},
		{
			name: "every field in writer order",
			in: payload.Alert{
				Title:           "Gate change",
				Subtitle:        "Flight NH204",
				Body:            "Now boarding at gate 52",
				LaunchImage:     "gate.png",
				LocKey:          "GATE_BODY",
				LocArgs:         []string{"52"},
				TitleLocKey:     "GATE_TITLE",
				TitleLocArgs:    []string{"NH204"},
				SubtitleLocKey:  "GATE_SUB",
				SubtitleLocArgs: []string{"NH204", "52"},
				ActionLocKey:    "VIEW_GATE",
				Action:          "View",
			},
			want: `{"title":"Gate change","subtitle":"Flight NH204","body":"Now boarding at gate 52","launch-image":"gate.png","loc-key":"GATE_BODY","loc-args":["52"],"title-loc-key":"GATE_TITLE","title-loc-args":["NH204"],"subtitle-loc-key":"GATE_SUB","subtitle-loc-args":["NH204","52"],"action-loc-key":"VIEW_GATE","action":"View"}`,
		},
		{
			name: "empty arg slices are omitted",
			in: payload.Alert{
				Body:         "plain",
				LocArgs:      []string{},
				TitleLocArgs: []string{},
			},
			want: `{"body":"plain"}`,
		},
		{
			name: "quotes and backslashes escape",
			in:   payload.Alert{Body: `path "C:\tmp"`},
			want: `{"body":"path \"C:\\tmp\""}`,
		},
		{
			name: "control characters escape as u-sequences",
			in:   payload.Alert{Body: "line1\nline2"},
			want: `{"body":"line1\u000aline2"}`,
		},
		{
			name: "non-ascii passes through raw",
			in:   payload.Alert{Title: "搭乗開始"},
			want: `{"title":"搭乗開始"}`,
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

			// Whatever the byte order, the output must mean the same thing
			// encoding/json would have produced.
			type alertAlias payload.Alert
			std, err := json.Marshal(alertAlias(tt.in))
			if err != nil {
				t.Fatalf("json.Marshal: %v", err)
			}
			requireSameJSON(t, std, got)
		})
	}
}
