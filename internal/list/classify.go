package list

// classify.go turns a set of uploaded files into per-bucket record
// batches. Classification is a pure function: every call builds a fresh
// result, and nothing here is shared between invocations, so concurrent
// submissions cannot bleed rows into each other's buckets.

// File is one uploaded file after CSV parsing: its name plus its rows.
type File struct {
	Name string
	Rows []Row
}

// FileReport is the per-file outcome of classification and validation.
type FileReport struct {
	Name   string     `json:"name"`
	Op     Operation  `json:"operation,omitempty"`
	Org    string     `json:"org,omitempty"`
	Reject string     `json:"reject,omitempty"` // set when the file was excluded outright
	Errors []RowError `json:"errors,omitempty"`
}

// OrgBatch is the per-organization slice of a multi-org batch.
type OrgBatch struct {
	Additions []Record
	Removals  []Record
}

// Batch is a classified, validated reconciliation batch. It is
// request-scoped: built for one reconciliation call and never persisted.
type Batch struct {
	Additions     []Record
	Removals      []Record
	Modifications []Record

	// ByOrg is populated for multi-org lists only.
	ByOrg map[string]*OrgBatch
}

// BuildBatch classifies the files by name, validates every row, and
// assembles the batch. A file whose name does not match the list's
// convention is excluded from every bucket and flagged in its report.
// The batch is usable only when valid is true: one failing row anywhere
// invalidates the whole submission, though all reports are still
// returned so the caller sees every problem at once.
func BuildBatch(def Definition, files []File) (batch *Batch, reports []FileReport, valid bool) {
	batch = &Batch{}
	if def.MultiOrg {
		batch.ByOrg = make(map[string]*OrgBatch)
	}
	valid = true

	for _, f := range files {
		label, err := ParseFileName(def, f.Name)
		if err != nil {
			reports = append(reports, FileReport{Name: f.Name, Reject: err.Error()})
			continue
		}

		records, errs := ValidateRows(def, f.Rows, label.Org)
		report := FileReport{Name: f.Name, Op: label.Op, Org: label.Org, Errors: errs}
		reports = append(reports, report)
		if len(errs) > 0 {
			valid = false
			continue
		}

		switch label.Op {
		case OpAdditions:
			batch.Additions = append(batch.Additions, records...)
		case OpRemovals:
			batch.Removals = append(batch.Removals, records...)
		case OpModifications:
			batch.Modifications = append(batch.Modifications, records...)
		}

		if def.MultiOrg {
			ob := batch.ByOrg[label.Org]
			if ob == nil {
				ob = &OrgBatch{}
				batch.ByOrg[label.Org] = ob
			}
			switch label.Op {
			case OpAdditions:
				ob.Additions = append(ob.Additions, records...)
			case OpRemovals:
				ob.Removals = append(ob.Removals, records...)
			}
		}
	}

	return batch, reports, valid
}
