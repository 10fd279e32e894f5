// File: internal/campus/collector/fill_test.go
package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campusdaily/internal/config"
)

func textRow(title, colName string, required bool) FieldRow {
	return FieldRow{
		"title":      title,
		"colName":    colName,
		"fieldType":  "1",
		"isRequired": required,
		"sort":       float64(1),
	}
}

func choiceRow(title, colName, fieldType string, options ...string) FieldRow {
	items := make([]any, 0, len(options))
	for i, content := range options {
		items = append(items, map[string]any{
			"content": content,
			"itemWid": float64(i + 1),
		})
	}
	return FieldRow{
		"title":      title,
		"colName":    colName,
		"fieldType":  fieldType,
		"isRequired": true,
		"fieldItems": items,
	}
}

func answerSet(subject string, records ...config.AnswerRecord) []config.AnswerSet {
	return []config.AnswerSet{{Subject: subject, Fields: records}}
}

func answer(title, colName string, values ...string) config.AnswerRecord {
	return config.AnswerRecord{Title: title, ColName: colName, Values: values}
}

func TestFill_TextEntry(t *testing.T) {
	form := &Form{
		Subject: "Daily Health Report",
		Fields: []FieldRow{
			textRow("Body temperature", "field_1", true),
			textRow("Optional remark", "field_2", false),
		},
	}
	sets := answerSet("Daily Health Report", answer("Body temperature", "field_1", "36.5"))

	ok, err := form.Fill(sets, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, form.Submission, 1)
	assert.Equal(t, "36.5", form.Submission[0]["value"])
	assert.Equal(t, "field_1", form.Submission[0].ColName())

	// The fetched rows stay untouched; only the clones carry answers.
	assert.NotContains(t, form.Fields[0], "value")
}

func TestFill_SingleChoice(t *testing.T) {
	form := &Form{
		Subject: "Daily Health Report",
		Fields: []FieldRow{
			choiceRow("Current status", "field_1", "2", "A. On campus", "B. At home", "C. Abroad"),
		},
	}
	sets := answerSet("Daily Health Report", answer("Current status", "field_1", "B. At home"))

	ok, err := form.Fill(sets, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, form.Submission, 1)
	entry := form.Submission[0]
	assert.Equal(t, "B. At home", entry["value"])
	retained := entry.options()
	require.Len(t, retained, 1)
	assert.Equal(t, "B. At home", retained[0].(map[string]any)["content"])
}

func TestFill_MultiChoice(t *testing.T) {
	form := &Form{
		Subject: "Travel Survey",
		Fields: []FieldRow{
			choiceRow("Regions visited", "field_1", "3", "North", "South", "East", "West"),
		},
	}
	sets := answerSet("Travel Survey", answer("Regions visited", "field_1", "North", "East"))

	ok, err := form.Fill(sets, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, ok)

	entry := form.Submission[0]
	assert.Equal(t, "North East", entry["value"])
	assert.Len(t, entry.options(), 2)
}

func TestFill_CardinalityViolations(t *testing.T) {
	t.Run("text wants exactly one answer", func(t *testing.T) {
		form := &Form{
			Subject: "S",
			Fields:  []FieldRow{textRow("Q", "f1", true)},
		}
		ok, err := form.Fill(answerSet("S", answer("Q", "f1", "a", "b")), zap.NewNop())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, form.Submission)
	})

	t.Run("single choice wants exactly one answer", func(t *testing.T) {
		form := &Form{
			Subject: "S",
			Fields:  []FieldRow{choiceRow("Q", "f1", "2", "A", "B")},
		}
		ok, err := form.Fill(answerSet("S", answer("Q", "f1", "A", "B")), zap.NewNop())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no retained choice", func(t *testing.T) {
		form := &Form{
			Subject: "S",
			Fields:  []FieldRow{choiceRow("Q", "f1", "3", "A", "B")},
		}
		ok, err := form.Fill(answerSet("S", answer("Q", "f1", "Z")), zap.NewNop())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestFill_SchemaDrift(t *testing.T) {
	form := &Form{
		Subject: "S",
		Fields:  []FieldRow{textRow("Body temperature", "field_9", true)},
	}
	sets := answerSet("S", answer("Body temperature", "field_1", "36.5"))

	_, err := form.Fill(sets, zap.NewNop())
	var drift *SchemaDriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, "field_9", drift.ColName)
	assert.Equal(t, "field_1", drift.DeclaredColName)
}

func TestFill_UnknownFieldType(t *testing.T) {
	row := textRow("Q", "f1", true)
	row["fieldType"] = "9"
	form := &Form{Subject: "S", Fields: []FieldRow{row}}

	_, err := form.Fill(answerSet("S", answer("Q", "f1", "x")), zap.NewNop())
	var unknown *UnknownFieldTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "9", unknown.FieldType)
}

func TestFill_SoftSkips(t *testing.T) {
	t.Run("no declared answers for subject", func(t *testing.T) {
		form := &Form{Subject: "S", Fields: []FieldRow{textRow("Q", "f1", true)}}
		ok, err := form.Fill(answerSet("Other", answer("Q", "f1", "x")), zap.NewNop())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing answer for a required entry", func(t *testing.T) {
		form := &Form{Subject: "S", Fields: []FieldRow{textRow("Q", "f1", true)}}
		ok, err := form.Fill(answerSet("S", answer("Unrelated", "f2", "x")), zap.NewNop())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("entries not fetched", func(t *testing.T) {
		form := &Form{Subject: "S"}
		ok, err := form.Fill(answerSet("S"), zap.NewNop())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestFill_NormalizesNonBreakingSpaces(t *testing.T) {
	form := &Form{
		Subject: "S",
		Fields:  []FieldRow{textRow("Body\u00a0temperature", "field_1", true)},
	}
	sets := answerSet("S", answer("Body temperature", "field_1", "36.5"))

	ok, err := form.Fill(sets, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFill_TypeFourDropped(t *testing.T) {
	row := textRow("Attachment", "field_2", true)
	row["fieldType"] = "4"
	form := &Form{
		Subject: "S",
		Fields:  []FieldRow{textRow("Q", "f1", true), row},
	}
	sets := answerSet("S",
		answer("Q", "f1", "x"),
		answer("Attachment", "field_2", "ignored"),
	)

	ok, err := form.Fill(sets, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, ok)

	// The type-4 entry is recognized but never included in the submission.
	require.Len(t, form.Submission, 1)
	assert.Equal(t, "f1", form.Submission[0].ColName())
}

func TestFill_PreservesUnknownServerKeys(t *testing.T) {
	row := textRow("Q", "f1", true)
	row["fetchStuLocation"] = true
	form := &Form{Subject: "S", Fields: []FieldRow{row}}

	ok, err := form.Fill(answerSet("S", answer("Q", "f1", "x")), zap.NewNop())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, true, form.Submission[0]["fetchStuLocation"])
}
