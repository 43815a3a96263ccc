//go:build !use_std_json
// +build !use_std_json

package payload

import "sync"

const hex = "0123456789abcdef"

const alertBufSize = 512

var alertPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, alertBufSize)
		return &b
	},
}

// alertField pairs a wire key with the value to emit for it; a zero Value
// and empty Values means "omit this field", mirroring the struct's own
// omitempty tags.
type alertField struct {
	key    string
	value  string
	values []string
}

// MarshalJSONFast renders the alert dictionary without going through
// encoding/json's reflection path.
func (a Alert) MarshalJSONFast() ([]byte, error) {
	ptr := alertPool.Get().(*[]byte)
	b := (*ptr)[:0]
	defer func() {
		*ptr = b
		alertPool.Put(ptr)
	}()

	fields := [...]alertField{
		{key: "title", value: a.Title},
		{key: "subtitle", value: a.Subtitle},
		{key: "body", value: a.Body},
		{key: "launch-image", value: a.LaunchImage},
		{key: "loc-key", value: a.LocKey},
		{key: "loc-args", values: a.LocArgs},
		{key: "title-loc-key", value: a.TitleLocKey},
		{key: "title-loc-args", values: a.TitleLocArgs},
		{key: "subtitle-loc-key", value: a.SubtitleLocKey},
		{key: "subtitle-loc-args", values: a.SubtitleLocArgs},
		{key: "action-loc-key", value: a.ActionLocKey},
		{key: "action", value: a.Action},
	}

	b = append(b, '{')
	wrote := false
	for _, f := range fields {
		if f.value == "" && len(f.values) == 0 {
			continue
		}
		if wrote {
			b = append(b, ',')
		}
		wrote = true
		b = appendAlertKey(b, f.key)
		if f.values != nil {
			b = appendAlertStringSlice(b, f.values)
		} else {
			b = appendAlertString(b, f.value)
		}
	}
	b = append(b, '}')

	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func appendAlertKey(b []byte, key string) []byte {
	b = append(b, '"')
	b = append(b, key...)
	b = append(b, '"', ':')
	return b
}

func appendAlertString(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b = append(b, '\\', c)
		case c <= 0x1F:
			b = append(b, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
		default:
			b = append(b, c)
		}
	}
	return append(b, '"')
}

func appendAlertStringSlice(b []byte, vals []string) []byte {
	b = append(b, '[')
	for i, v := range vals {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendAlertString(b, v)
	}
	return append(b, ']')
}
