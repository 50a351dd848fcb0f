package fields

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Update is a normalized write split across the two lead tables. Values are
// already coerced to storable types.
type Update struct {
	Conversations map[string]any
	LeadDetails   map[string]any
	Unknown       []string
}

// Empty reports whether nothing resolved.
func (u Update) Empty() bool {
	return len(u.Conversations) == 0 && len(u.LeadDetails) == 0
}

// Normalize resolves an externally named payload onto canonical columns.
// Resolution walks the Schema in declaration order and each field's aliases
// in order; the first alias present in the payload wins and later aliases of
// the same field are silently dropped. Keys matching no alias are returned in
// Unknown (callers log them, they are never an error).
func Normalize(payload map[string]any) Update {
	upd := Update{
		Conversations: map[string]any{},
		LeadDetails:   map[string]any{},
	}

	matched := make(map[string]bool, len(payload))
	for i := range Schema {
		f := &Schema[i]
		for _, alias := range f.Aliases {
			raw, ok := payload[alias]
			if !ok {
				continue
			}
			matched[alias] = true

			// First alias for this field wins; later aliases are consumed
			// but discarded.
			dest := upd.Conversations
			if f.Table == TableLeadDetails {
				dest = upd.LeadDetails
			}
			if _, seen := dest[f.Canonical]; seen {
				continue
			}

			val, err := coerce(raw, f.Kind)
			if err != nil {
				zap.L().Warn("fields: dropping uncoercible value",
					zap.String("alias", alias),
					zap.String("canonical", f.Canonical),
					zap.Error(err),
				)
				continue
			}
			dest[f.Canonical] = val
		}
	}

	for k := range payload {
		if !matched[k] {
			upd.Unknown = append(upd.Unknown, k)
		}
	}

	return upd
}

// scrubNumeric strips currency formatting ($ , % and spaces) so values like
// "$42,500.00" and "1.25%" cast cleanly.
func scrubNumeric(s string) string {
	r := strings.NewReplacer("$", "", ",", "", "%", "", " ", "")
	return r.Replace(strings.TrimSpace(s))
}

func coerce(raw any, kind Kind) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch kind {
	case KindText:
		switch v := raw.(type) {
		case string:
			return strings.TrimSpace(v), nil
		default:
			return strings.TrimSpace(fmt.Sprintf("%v", v)), nil
		}

	case KindMoney, KindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case json.Number:
			f, err := v.Float64()
			return f, eris.Wrap(err, "fields: parse number")
		case string:
			s := scrubNumeric(v)
			if s == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "fields: parse %q as number", v)
			}
			return f, nil
		default:
			return nil, eris.Errorf("fields: unsupported numeric type %T", raw)
		}

	case KindInt:
		switch v := raw.(type) {
		case float64:
			return int64(v), nil
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case json.Number:
			n, err := v.Int64()
			return n, eris.Wrap(err, "fields: parse int")
		case string:
			s := scrubNumeric(v)
			if s == "" {
				return nil, nil
			}
			// Tolerate "24.0" style values from spreadsheet exports.
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "fields: parse %q as int", v)
			}
			return int64(f), nil
		default:
			return nil, eris.Errorf("fields: unsupported int type %T", raw)
		}
	}

	return nil, eris.Errorf("fields: unknown kind %q", kind)
}
