// internal/model/lead.go
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type LeadStatus string

const (
	LeadPending LeadStatus = "pending"
	LeadSuccess LeadStatus = "success"
	LeadError   LeadStatus = "error"
	LeadNotSent LeadStatus = "not_sent"
)

// Lead is one recipient of the running campaign. (Name, Phone) is its identity.
type Lead struct {
	Name   string     `json:"name"`
	Phone  string     `json:"phone"`
	Status LeadStatus `json:"status"`
	SentAt *time.Time `json:"sentAt"`
}

func (l Lead) Matches(name, phone string) bool {
	return l.Name == name && l.Phone == phone
}

// LeadInput is a lead as submitted by the operator. Raw keeps the whole
// object so the worker receives exactly what was posted.
type LeadInput struct {
	Name  string
	Phone string
	Raw   json.RawMessage
}

func (l *LeadInput) UnmarshalJSON(data []byte) error {
	var fields struct {
		Name  any `json:"name"`
		Phone any `json:"phone"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("lead must be an object: %w", err)
	}
	l.Name = scalarString(fields.Name)
	l.Phone = scalarString(fields.Phone)
	l.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (l LeadInput) MarshalJSON() ([]byte, error) {
	if len(l.Raw) > 0 {
		return l.Raw, nil
	}
	return json.Marshal(struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}{l.Name, l.Phone})
}

// spreadsheet exports often turn phone numbers into JSON numbers
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
