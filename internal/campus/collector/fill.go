// File: internal/campus/collector/fill.go
package collector

import (
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"

	"campusdaily/internal/config"
)

// SchemaDriftError reports a title that matched a declared answer while its
// column identifier did not: the server-side form changed underneath the
// user's configuration. Filling anything in that state risks submitting wrong
// answers, so the mismatch is fatal for this form.
type SchemaDriftError struct {
	Title           string
	ColName         string
	DeclaredColName string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("collector: form schema drifted: title %q matches but column is %q, declared %q",
		e.Title, e.ColName, e.DeclaredColName)
}

// UnknownFieldTypeError reports an entry type this client has no filling rule
// for.
type UnknownFieldTypeError struct {
	FieldType string
	Title     string
}

func (e *UnknownFieldTypeError) Error() string {
	return fmt.Sprintf("collector: unknown field type %q on entry %q", e.FieldType, e.Title)
}

// Fill matches the form against the user's declared answer sets and builds
// the submission rows from the required entries. The boolean reports whether
// the form is ready to submit; a false with nil error is a soft skip (no
// matching answers, wrong answer cardinality, no retained choice). Errors are
// reserved for states that indicate the configuration can no longer be
// trusted for this form.
func (f *Form) Fill(sets []config.AnswerSet, logger *zap.Logger) (bool, error) {
	log := logger.Named("collector").With(zap.String("subject", f.Subject))
	if f.Fields == nil {
		log.Warn("Form entries not fetched; nothing to fill")
		return false, nil
	}

	var records []config.AnswerRecord
	for i := range sets {
		if sets[i].Subject == f.Subject {
			records = sets[i].Fields
			break
		}
	}
	if records == nil {
		log.Info("No declared answers for this form")
		return false, nil
	}

	filled := make([]FieldRow, 0, len(f.Fields))
	for _, row := range f.Fields {
		if !row.Required() {
			continue
		}
		title, colName := row.Title(), row.ColName()

		record, err := matchRecord(records, title, colName)
		if err != nil {
			return false, err
		}
		if record == nil {
			log.Warn("Missing answer for required entry", zap.String("title", title))
			return false, nil
		}

		entry, ok, err := fillEntry(maps.Clone(row), record.Values, log)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if entry != nil {
			filled = append(filled, entry)
		}
	}

	f.Submission = filled
	log.Info("Form filled", zap.Int("entries", len(filled)))
	return true, nil
}

// matchRecord finds the declared answer whose (title, col_name) pair matches
// the entry. A title-only match is schema drift.
func matchRecord(records []config.AnswerRecord, title, colName string) (*config.AnswerRecord, error) {
	for i := range records {
		if records[i].Title != title {
			continue
		}
		if records[i].ColName != colName {
			return nil, &SchemaDriftError{
				Title:           title,
				ColName:         colName,
				DeclaredColName: records[i].ColName,
			}
		}
		return &records[i], nil
	}
	return nil, nil
}

// fillEntry applies the per-type filling rule to a cloned row. A nil entry
// with ok=true means the entry is recognized but not submitted (type 4); a
// false ok with nil error skips the whole form.
func fillEntry(entry FieldRow, values []string, log *zap.Logger) (FieldRow, bool, error) {
	fieldType := entry.FieldType()
	switch fieldType {
	case "1", "5": // free text
		if len(values) != 1 {
			log.Warn("Expected exactly one answer for text entry",
				zap.String("title", entry.Title()), zap.Int("got", len(values)))
			return nil, false, nil
		}
		entry["value"] = values[0]
		return entry, true, nil

	case "2", "3": // single / multiple choice
		if fieldType == "2" && len(values) != 1 {
			log.Warn("Expected exactly one answer for single-choice entry",
				zap.String("title", entry.Title()), zap.Int("got", len(values)))
			return nil, false, nil
		}

		declared := make(map[string]struct{}, len(values))
		for _, v := range values {
			declared[v] = struct{}{}
		}

		var retained []any
		var contents []string
		for _, item := range entry.options() {
			option, ok := item.(map[string]any)
			if !ok {
				continue
			}
			content, _ := option["content"].(string)
			if _, match := declared[content]; match {
				retained = append(retained, item)
				contents = append(contents, content)
			}
		}
		if len(retained) == 0 {
			log.Warn("No declared answer matches any choice",
				zap.String("title", entry.Title()))
			return nil, false, nil
		}
		entry["fieldItems"] = retained
		entry["value"] = strings.Join(contents, " ")
		return entry, true, nil

	case "4": // attachment-like entry: recognized but never submitted
		log.Warn("Skipping type-4 entry", zap.String("title", entry.Title()))
		return nil, true, nil

	default:
		return nil, false, &UnknownFieldTypeError{FieldType: fieldType, Title: entry.Title()}
	}
}
