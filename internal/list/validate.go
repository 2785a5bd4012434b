package list

// validate.go runs the ordered per-row validation pipeline.
//
// Each row goes through two stages:
//  1. Schema stage: every required column must be present and non-empty;
//     per-field normalizers run here.
//  2. Rule stage: the list's ordered business rules run against the
//     normalized record, short-circuiting on the first failure.
//
// A file is valid only if every one of its rows passes; errors are
// collected per row so operators see the full damage in one pass.

// ValidateRows validates the rows of one classified file and returns the
// normalized records alongside the row errors. Rows are numbered from 2:
// line 1 is the header of the originating CSV file.
func ValidateRows(def Definition, rows []Row, org string) ([]Record, []RowError) {
	records := make([]Record, 0, len(rows))
	var errs []RowError

	for i, row := range rows {
		line := i + 2
		rec, err := validateRow(def, row, org)
		if err != nil {
			err.Line = line
			errs = append(errs, *err)
			continue
		}
		records = append(records, rec)
	}

	return records, errs
}

// validateRow validates a single row. The returned error has no line
// number; the caller fills it in.
func validateRow(def Definition, row Row, org string) (Record, *RowError) {
	rec := Record{Org: org, Fields: make(map[string]string, len(def.Fields))}

	for _, spec := range def.Fields {
		if spec.Derived {
			continue
		}
		raw := CleanCell(row[spec.Name])

		if raw == "" && !spec.Optional {
			return Record{}, &RowError{Field: spec.Name, Message: "required field is empty"}
		}
		if spec.Normalize != nil && raw != "" {
			raw = spec.Normalize(raw)
		}
		rec.Fields[spec.Name] = raw
	}

	for _, rule := range def.Rules {
		if err := rule(&rec); err != nil {
			return Record{}, err
		}
	}

	rec.Key = rec.Fields[def.KeyField]
	if rec.Key == "" {
		return Record{}, &RowError{Field: def.KeyField, Message: "natural key is empty"}
	}

	return rec, nil
}
