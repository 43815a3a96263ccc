//go:build !use_std_json
// +build !use_std_json

package apns

// defaultFastEncoder backs WithFastJSON with the hand-rolled encoder from
// payload_marshal.go.
func defaultFastEncoder(p *Payload) ([]byte, error) {
	return p.MarshalJSONFast()
}
