//go:build !use_std_json
// +build !use_std_json

package apns

import (
	"sync"

	"github.com/takara-systems/apns/payload"
)

const customDataBufSize = 512

var customDataPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, customDataBufSize)
		return &b
	},
}

// MarshalJSONFast renders a Payload as `{"aps":<aps>,<custom keys...>}`
// without going through encoding/json, reusing APS's own fast encoder for
// the "aps" object and a pooled buffer for the custom top-level keys.
func (p Payload) MarshalJSONFast() ([]byte, error) {
	aps, err := p.APS.MarshalJSONFast()
	if err != nil {
		return nil, err
	}

	var custom []byte
	if len(p.CustomData) > 0 {
		ptr := customDataPool.Get().(*[]byte)
		buf := (*ptr)[:0]
		custom, err = appendCustomData(buf, p.CustomData)
		*ptr = buf
		customDataPool.Put(ptr)
		if err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, len(aps)+len(custom)+len(`{"aps":`)+len(",}"))
	out = append(out, `{"aps":`...)
	out = append(out, aps...)
	if len(custom) > 0 {
		out = append(out, ',')
		out = append(out, custom...)
	}
	out = append(out, '}')
	return out, nil
}

// appendCustomData writes data's keys as top-level `"key":value` pairs
// (no enclosing braces -- the caller already has one open) into b and
// returns the result. A fresh slice is returned so the caller can keep
// buf pooled without the returned bytes aliasing it. An "aps" key in data
// is dropped: the APS field already owns that slot, and emitting it twice
// would hand APNs a duplicate key.
func appendCustomData(buf []byte, data map[string]any) ([]byte, error) {
	start := len(buf)
	wrote := false
	for k, v := range data {
		if k == "aps" {
			continue
		}
		if wrote {
			buf = append(buf, ',')
		}
		wrote = true
		buf = appendJSONString(buf, k)
		buf = append(buf, ':')
		var err error
		buf, err = payload.EncodeValue(buf, v)
		if err != nil {
			return nil, err
		}
	}
	out := make([]byte, len(buf)-start)
	copy(out, buf[start:])
	return out, nil
}

func appendJSONString(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '"' || c == '\\' {
			b = append(b, '\\', c)
		} else {
			b = append(b, c)
		}
	}
	return append(b, '"')
}
