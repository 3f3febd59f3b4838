package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a []string persisted as a JSONB array. Values are sent as
// text so lib/pq does not encode them as bytea.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	*l = out
	return nil
}

// AnswerSheet maps question IDs to the latest recorded answer.
type AnswerSheet map[string]string

// Value implements driver.Valuer.
func (a AnswerSheet) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]string(a))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (a *AnswerSheet) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	out := make(map[string]string)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("scan answer sheet: %w", err)
		}
	}
	*a = out
	return nil
}

// Clone returns an independent copy of the sheet.
func (a AnswerSheet) Clone() AnswerSheet {
	out := make(AnswerSheet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb source %T", src)
	}
}

// JSONDocument is an opaque JSON value stored in a JSONB column.
type JSONDocument json.RawMessage

// Value implements driver.Valuer.
func (d JSONDocument) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	return string(d), nil
}

// Scan implements sql.Scanner.
func (d *JSONDocument) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	*d = append((*d)[:0], raw...)
	if raw == nil {
		*d = nil
	}
	return nil
}

// MarshalJSON emits the document verbatim.
func (d JSONDocument) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON keeps a copy of the raw document.
func (d *JSONDocument) UnmarshalJSON(data []byte) error {
	*d = append((*d)[:0], data...)
	return nil
}
