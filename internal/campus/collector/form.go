// File: internal/campus/collector/form.go

// Package collector speaks the campus platform's form-collection API: listing
// open collection forms, fetching their schemas, filling them from a user's
// declared answers, and submitting the encrypted envelope.
package collector

import (
	"strings"
	"time"
)

// Server timestamps come naive, in the institution's local wall clock.
const (
	summaryTimeLayout = "2006-01-02 15:04"
	fetchTimeLayout   = "2006-01-02 15:04:05"
)

// FieldRow is one server-side form entry, kept as loose JSON so every key the
// server sent survives the round trip back through the submission payload.
type FieldRow map[string]any

// Title returns the entry title with non-breaking spaces normalized to plain
// spaces, the form the declared answers are matched against.
func (r FieldRow) Title() string {
	title, _ := r["title"].(string)
	return strings.ReplaceAll(title, "\u00a0", " ")
}

// ColName returns the server-side column identifier.
func (r FieldRow) ColName() string {
	col, _ := r["colName"].(string)
	return col
}

// FieldType returns the entry's type discriminator ("1" through "5").
func (r FieldRow) FieldType() string {
	ft, _ := r["fieldType"].(string)
	return ft
}

// Required reports whether the entry must be filled. The server encodes the
// flag inconsistently across deployments, so any truthy JSON value counts.
func (r FieldRow) Required() bool {
	switch v := r["isRequired"].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != "" && v != "0" && v != "false"
	}
	return false
}

// options returns the entry's choice items, nil for text entries.
func (r FieldRow) options() []any {
	items, _ := r["fieldItems"].([]any)
	return items
}

// Form is one collection form: the listing summary, plus the schema once
// fetched and the filled rows once matched against a user's answers.
type Form struct {
	Subject  string
	Wid      string
	FormWid  string
	Source   string
	Issuer   string
	Priority string

	Created   time.Time
	StartTime time.Time
	EndTime   time.Time
	FetchTime time.Time

	Handled bool
	Read    bool

	// Populated by FetchSchema.
	SchoolTaskWid string
	Fields        []FieldRow
	TotalSize     int

	// Populated by Fill.
	Submission []FieldRow
}

type formSummary struct {
	Subject        string `json:"subject"`
	Wid            string `json:"wid"`
	FormWid        string `json:"formWid"`
	Content        string `json:"content"`
	SenderUserName string `json:"senderUserName"`
	Priority       string `json:"priority"`
	CreateTime     string `json:"createTime"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	CurrentTime    string `json:"currentTime"`
	IsHandled      int    `json:"isHandled"`
	IsRead         int    `json:"isRead"`
}

func newForm(s *formSummary) *Form {
	return &Form{
		Subject:   s.Subject,
		Wid:       s.Wid,
		FormWid:   s.FormWid,
		Source:    s.Content,
		Issuer:    s.SenderUserName,
		Priority:  s.Priority,
		Created:   parseLocal(s.CreateTime, summaryTimeLayout),
		StartTime: parseLocal(s.StartTime, summaryTimeLayout),
		EndTime:   parseLocal(s.EndTime, summaryTimeLayout),
		FetchTime: parseLocal(s.CurrentTime, fetchTimeLayout),
		Handled:   s.IsHandled == 1,
		Read:      s.IsRead == 1,
	}
}

// parseLocal parses a naive server timestamp in the local zone; malformed or
// absent timestamps yield the zero time rather than failing the listing.
func parseLocal(value, layout string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(layout, value, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
