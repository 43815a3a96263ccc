package payload

import "fmt"

// Ratio is a fraction in [0.0, 1.0], used for a critical alert's volume.
type Ratio float64

// Validate rejects a Ratio outside [0.0, 1.0].
func (r Ratio) Validate() error {
	if r < 0.0 || r > 1.0 {
		return fmt.Errorf("ratio out of range: %f", r)
	}
	return nil
}
