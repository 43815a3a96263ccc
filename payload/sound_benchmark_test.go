//go:build !use_std_json
// +build !use_std_json

package payload_test

import (
	"encoding/json"
	"testing"

	"github.com/takara-systems/apns/payload"
	"github.com/takara-systems/apns/payload/sound"
)

func BenchmarkSoundMarshal(b *testing.B) {
	s := payload.Sound{
		Name:     "siren.aiff",
		Critical: sound.Critical,
		Volume:   0.9,
	}

	b.Run("standard", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(s)
		}
	})
	b.Run("fast", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = s.MarshalJSONFast()
		}
	})
}
