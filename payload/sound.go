package payload

import (
	"fmt"

	"github.com/takara-systems/apns/payload/sound"
)

// Sound is the dictionary form of APS.Sound, needed whenever a
// notification plays a critical alert: a bare string names a bundled
// sound file, this struct additionally carries the critical flag and
// playback volume.
//
// https://developer.apple.com/documentation/usernotifications/generating-a-remote-notification
type Sound struct {
	Name     string          `json:"name,omitempty"`
	Critical sound.AlertFlag `json:"critical,omitempty"`
	Volume   Ratio           `json:"volume,omitempty"`
}

// Validate rejects a Critical flag outside {0,1} or a Volume outside
// [0.0, 1.0].
func (s *Sound) Validate() error {
	if s.Critical != sound.None && s.Critical != sound.Critical {
		return fmt.Errorf("invalid critical flag: %d", s.Critical)
	}
	if err := s.Volume.Validate(); err != nil {
		return fmt.Errorf("volume field error: %w", err)
	}
	return nil
}
