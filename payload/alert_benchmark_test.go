//go:build !use_std_json
// +build !use_std_json

package payload_test

import (
	"encoding/json"
	"testing"

	"github.com/takara-systems/apns/payload"
)

func BenchmarkAlertMarshal(b *testing.B) {
	alert := payload.Alert{
		Title:        "Gate change",
		Body:         "Flight NH204 now boards at gate 52",
		LocKey:       "GATE_BODY",
		LocArgs:      []string{"NH204", "52"},
		TitleLocKey:  "GATE_TITLE",
		TitleLocArgs: []string{"NH204"},
		ActionLocKey: "VIEW_GATE",
	}

	b.Run("standard", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(alert)
		}
	})
	b.Run("fast", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = alert.MarshalJSONFast()
		}
	})
}
