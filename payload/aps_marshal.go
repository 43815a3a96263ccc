//go:build !use_std_json
// +build !use_std_json

package payload

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/takara-systems/apns/notification"
)

// ErrInvalidType is returned by MarshalJSONFast when a field holds a Go
// type the hand-rolled encoder does not know how to serialize.
var ErrInvalidType = errors.New("invalid type for APS field")

const apsBufSize = 560

var apsPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, apsBufSize)
		return &b
	},
}

// apsWriter accumulates the `aps` object byte by byte, tracking whether a
// separating comma is due before the next field.
type apsWriter struct {
	buf   []byte
	wrote bool
}

func (w *apsWriter) comma() {
	if w.wrote {
		w.buf = append(w.buf, ',')
	}
	w.wrote = true
}

func (w *apsWriter) key(name string) {
	w.comma()
	w.buf = append(w.buf, '"')
	w.buf = append(w.buf, name...)
	w.buf = append(w.buf, '"', ':')
}

func (w *apsWriter) quoted(s string) {
	w.buf = append(w.buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			w.buf = append(w.buf, '\\', c)
		case c <= 0x1F:
			w.buf = append(w.buf, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
		default:
			w.buf = append(w.buf, c)
		}
	}
	w.buf = append(w.buf, '"')
}

func (w *apsWriter) field(name, value string) {
	if value == "" {
		return
	}
	w.key(name)
	w.quoted(value)
}

func (w *apsWriter) epoch(name string, t *notification.EpochTime) {
	if t == nil {
		return
	}
	w.key(name)
	w.buf = strconv.AppendInt(w.buf, int64(*t), 10)
}

func (w *apsWriter) stringMap(name string, m map[string]any) error {
	if len(m) == 0 {
		return nil
	}
	w.key(name)
	w.buf = append(w.buf, '{')
	inner := false
	for k, v := range m {
		if inner {
			w.buf = append(w.buf, ',')
		}
		inner = true
		w.quoted(k)
		w.buf = append(w.buf, ':')
		var err error
		w.buf, err = EncodeValue(w.buf, v)
		if err != nil {
			return err
		}
	}
	w.buf = append(w.buf, '}')
	return nil
}

// MarshalJSONFast renders the `aps` dictionary without going through
// encoding/json's reflection path. It is only built when the
// "use_std_json" build tag is absent.
func (aps APS) MarshalJSONFast() ([]byte, error) {
	ptr := apsPool.Get().(*[]byte)
	w := apsWriter{buf: (*ptr)[:0]}
	defer func() {
		*ptr = w.buf
		apsPool.Put(ptr)
	}()

	w.buf = append(w.buf, '{')

	if aps.Alert != nil {
		w.key("alert")
		switch v := aps.Alert.(type) {
		case *Alert:
			enc, err := v.MarshalJSONFast()
			if err != nil {
				return nil, err
			}
			w.buf = append(w.buf, enc...)
		case Alert:
			enc, err := v.MarshalJSONFast()
			if err != nil {
				return nil, err
			}
			w.buf = append(w.buf, enc...)
		case string:
			w.quoted(v)
		default:
			return nil, ErrInvalidType
		}
	}

	if aps.Badge != nil {
		v, ok := aps.Badge.(int)
		if !ok {
			return nil, ErrInvalidType
		}
		w.key("badge")
		w.buf = strconv.AppendInt(w.buf, int64(v), 10)
	}

	if aps.Sound != nil {
		w.key("sound")
		switch v := aps.Sound.(type) {
		case string:
			w.quoted(v)
		case Sound:
			enc, err := v.MarshalJSONFast()
			if err != nil {
				return nil, err
			}
			w.buf = append(w.buf, enc...)
		case *Sound:
			enc, err := v.MarshalJSONFast()
			if err != nil {
				return nil, err
			}
			w.buf = append(w.buf, enc...)
		default:
			return nil, ErrInvalidType
		}
	}

	if aps.ContentAvailable != nil {
		w.key("content-available")
		w.buf = append(w.buf, '1')
	}

	if aps.MutableContent != nil {
		w.key("mutable-content")
		w.buf = append(w.buf, '1')
	}

	w.field("category", aps.Category)
	w.field("thread-id", aps.ThreadID)
	w.field("interruption-level", string(aps.InterruptionLevel))

	if aps.RelevanceScore != nil {
		w.key("relevance-score")
		switch v := aps.RelevanceScore.(type) {
		case float64:
			w.buf = strconv.AppendFloat(w.buf, v, 'f', -1, 64)
		case int:
			w.buf = strconv.AppendInt(w.buf, int64(v), 10)
		default:
			return nil, ErrInvalidType
		}
	}

	w.epoch("stale-date", aps.StaleDate)
	w.field("filter-criteria", aps.FilterCriteria)
	w.epoch("timestamp", aps.Timestamp)
	w.field("target-content-id", aps.TargetContentID)
	if err := w.stringMap("content-state", aps.ContentState); err != nil {
		return nil, err
	}
	w.field("event", aps.Event)

	if aps.DismissalDate != 0 {
		w.key("dismissal-date")
		w.buf = strconv.AppendInt(w.buf, aps.DismissalDate, 10)
	}

	w.field("attributes-type", aps.AttributesType)
	if err := w.stringMap("attributes", aps.Attributes); err != nil {
		return nil, err
	}

	w.buf = append(w.buf, '}')
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out, nil
}

// EncodeValue recursively renders an arbitrary Go value (as found inside a
// Live Activity's ContentState/Attributes map) into JSON, without
// delegating to encoding/json except for types that implement
// json.Marshaler themselves.
func EncodeValue(b []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		b = strconv.AppendQuote(b, val)
	case int:
		b = strconv.AppendInt(b, int64(val), 10)
	case int64:
		b = strconv.AppendInt(b, val, 10)
	case float64:
		b = strconv.AppendFloat(b, val, 'f', -1, 64)
	case bool:
		if val {
			b = append(b, "true"...)
		} else {
			b = append(b, "false"...)
		}
	case nil:
		b = append(b, "null"...)
	case []byte:
		b = strconv.AppendQuote(b, string(val))
	case notification.EpochTime:
		b = strconv.AppendInt(b, int64(val), 10)
	case *notification.EpochTime:
		b = strconv.AppendInt(b, int64(*val), 10)
	case []string:
		b = append(b, '[')
		for i, v2 := range val {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendQuote(b, v2)
		}
		b = append(b, ']')
	case []int:
		b = append(b, '[')
		for i, v2 := range val {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendInt(b, int64(v2), 10)
		}
		b = append(b, ']')
	case []int64:
		b = append(b, '[')
		for i, v2 := range val {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendInt(b, v2, 10)
		}
		b = append(b, ']')
	case []float64:
		b = append(b, '[')
		for i, v2 := range val {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendFloat(b, v2, 'f', -1, 64)
		}
		b = append(b, ']')
	case json.Marshaler:
		marshaled, err := val.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b = append(b, marshaled...)
	case map[string]any:
		b = append(b, '{')
		first := true
		for k2, v2 := range val {
			if !first {
				b = append(b, ',')
			} else {
				first = false
			}
			b = strconv.AppendQuote(b, k2)
			b = append(b, ':')
			var err error
			b, err = EncodeValue(b, v2)
			if err != nil {
				return nil, err
			}
		}
		b = append(b, '}')
	case []any:
		b = append(b, '[')
		for i, v2 := range val {
			if i > 0 {
				b = append(b, ',')
			}
			var err error
			b, err = EncodeValue(b, v2)
			if err != nil {
				return nil, err
			}
		}
		b = append(b, ']')
	default:
		return nil, ErrInvalidType
	}
	return b, nil
}
