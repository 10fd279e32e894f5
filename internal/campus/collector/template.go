// File: internal/campus/collector/template.go
package collector

import "campusdaily/internal/config"

// Template builds a skeleton answer set for this form: one record per entry,
// with every available choice listed as a candidate answer for the user to
// prune. Requires a fetched schema.
func (f *Form) Template(onlyRequired bool) config.AnswerSet {
	records := make([]config.AnswerRecord, 0, len(f.Fields))
	for _, row := range f.Fields {
		if onlyRequired && !row.Required() {
			continue
		}

		var candidates []string
		for _, item := range row.options() {
			option, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if content, ok := option["content"].(string); ok {
				candidates = append(candidates, content)
			}
		}

		records = append(records, config.AnswerRecord{
			Title:   row.Title(),
			ColName: row.ColName(),
			Type:    row.FieldType(),
			Values:  candidates,
		})
	}
	return config.AnswerSet{
		Subject: f.Subject,
		Size:    len(records),
		Fields:  records,
	}
}
