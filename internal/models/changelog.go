package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Fixed descriptions for actions that are not diffed.
const (
	ChangeDescriptionCreated  = "Добавен контакт."
	ChangeDescriptionDeleted  = "Изтрит контакт."
	ChangeDescriptionRestored = "Възстановен контакт."
)

// ChangeLog is an immutable audit entry for a single person.
type ChangeLog struct {
	ID           string       `db:"id" json:"id"`
	Seq          int64        `db:"seq" json:"-"`
	PersonID     string       `db:"person_id" json:"person_id"`
	Descriptions Descriptions `db:"descriptions" json:"descriptions"`
	ChangedBy    string       `db:"changed_by" json:"changed_by"`
	ChangedAt    time.Time    `db:"changed_at" json:"changed_at"`
}

// Descriptions is the ordered list of change descriptions, stored as a JSON array.
type Descriptions []string

// Value encodes the list without HTML escaping so embedded markup is stored verbatim.
func (d Descriptions) Value() (driver.Value, error) {
	list := []string(d)
	if list == nil {
		list = []string{}
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(list); err != nil {
		return nil, fmt.Errorf("encode descriptions: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Scan decodes a JSON array column.
func (d *Descriptions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Descriptions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("descriptions: unsupported column type")
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("decode descriptions: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	*d = list
	return nil
}
