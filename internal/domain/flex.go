package domain

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// FlexText holds an upstream field whose JSON type is not stable (string,
// list of strings, object, or null). Valid is false when the payload carried
// null or nothing at all. Text is what the field says in words: the string,
// the joined list, or for any other JSON value the string values found inside
// it. Object keys, numbers and booleans never reach Text; Raw keeps the
// compact encoding of such values.
type FlexText struct {
	Text  string
	Raw   json.RawMessage
	Valid bool
}

func NewFlexText(s string) FlexText {
	return FlexText{Text: s, Valid: true}
}

func (f *FlexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = FlexText{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexText{Text: s, Valid: true}
		return nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = FlexText{Text: strings.Join(list, ", "), Valid: true}
		return nil
	}

	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}
	*f = FlexText{
		Text:  strings.Join(stringValues(v, nil), ", "),
		Raw:   json.RawMessage(buf.Bytes()),
		Valid: true,
	}
	return nil
}

// stringValues collects string leaves. Object members are visited in key
// order so Text is deterministic.
func stringValues(v any, out []string) []string {
	switch t := v.(type) {
	case string:
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	case []any:
		for _, e := range t {
			out = stringValues(e, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = stringValues(t[k], out)
		}
	}
	return out
}

func (f FlexText) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	if len(f.Raw) > 0 {
		return f.Raw, nil
	}
	return json.Marshal(f.Text)
}

// ContainsFold reports whether the text contains token, ignoring case.
func (f FlexText) ContainsFold(token string) bool {
	if !f.Valid {
		return false
	}
	return strings.Contains(strings.ToLower(f.Text), strings.ToLower(token))
}
