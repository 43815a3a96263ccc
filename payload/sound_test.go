package payload_test

import (
	"strings"
	"testing"

	"github.com/takara-systems/apns/payload"
	"github.com/takara-systems/apns/payload/sound"
)

func TestSoundValidate(t *testing.T) {
	tests := []struct {
		name     string
		in       payload.Sound
		fragment string
	}{
		{"name only", payload.Sound{Name: "drip.aiff"}, ""},
		{"critical with volume", payload.Sound{Name: "siren.aiff", Critical: sound.Critical, Volume: 0.75}, ""},
		{"explicit non-critical", payload.Sound{Name: "drip.aiff", Critical: sound.None, Volume: 0.3}, ""},
		{"critical flag out of range", payload.Sound{Critical: 4}, "invalid critical flag: 4"},
		{"volume below zero", payload.Sound{Name: "drip.aiff", Volume: -0.25}, "ratio out of range"},
		{"volume above one", payload.Sound{Name: "drip.aiff", Volume: 1.5}, "ratio out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.fragment == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.fragment) {
				t.Errorf("Validate() = %v, want an error containing %q", err, tt.fragment)
			}
		})
	}
}
