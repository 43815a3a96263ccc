//go:build use_std_json
// +build use_std_json

package apns

// defaultFastEncoder falls back to the standard encoder under the
// use_std_json build tag, which removes MarshalJSONFast from the build
// entirely.
func defaultFastEncoder(p *Payload) ([]byte, error) {
	return standardEncoder(p)
}
