package list

import "testing"

func recs(keys ...string) []Record {
	out := make([]Record, len(keys))
	for i, k := range keys {
		out[i] = Record{Key: k, Fields: map[string]string{"k": k}}
	}
	return out
}

func keysOf(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key
	}
	return out
}

func sameKeys(got []Record, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, r := range got {
		if r.Key != want[i] {
			return false
		}
	}
	return true
}

func TestCheckDuplicates(t *testing.T) {
	reference := KeySet(recs("A", "B"))
	res := CheckDuplicates(reference, recs("A", "C", "B", "D"))

	if !sameKeys(res.Valid, "C", "D") {
		t.Errorf("valid = %v, want [C D]", keysOf(res.Valid))
	}
	if !sameKeys(res.Duplicates, "A", "B") {
		t.Errorf("duplicates = %v, want [A B]", keysOf(res.Duplicates))
	}
}

func TestCheckDuplicates_EmptyReference(t *testing.T) {
	res := CheckDuplicates(map[string]bool{}, recs("A", "B"))
	if !sameKeys(res.Valid, "A", "B") {
		t.Errorf("valid = %v, want all records", keysOf(res.Valid))
	}
	if len(res.Duplicates) != 0 {
		t.Errorf("duplicates = %v, want none", keysOf(res.Duplicates))
	}
}

func TestVerifyExists(t *testing.T) {
	reference := KeySet(recs("A", "B"))
	res := VerifyExists(reference, recs("B", "X", "A", "Y"))

	if !sameKeys(res.Found, "B", "A") {
		t.Errorf("found = %v, want [B A]", keysOf(res.Found))
	}
	if !sameKeys(res.NotFound, "X", "Y") {
		t.Errorf("not found = %v, want [X Y]", keysOf(res.NotFound))
	}
}

func TestDedupeWithin_FirstWins(t *testing.T) {
	in := []Record{
		{Key: "A", Fields: map[string]string{"v": "first"}},
		{Key: "B", Fields: map[string]string{"v": "only"}},
		{Key: "A", Fields: map[string]string{"v": "second"}},
		{Key: "A", Fields: map[string]string{"v": "third"}},
	}

	unique, duplicates := DedupeWithin(in)
	if !sameKeys(unique, "A", "B") {
		t.Fatalf("unique = %v, want [A B]", keysOf(unique))
	}
	if unique[0].Fields["v"] != "first" {
		t.Errorf("kept occurrence = %q, want the first one", unique[0].Fields["v"])
	}
	if len(duplicates) != 2 {
		t.Errorf("duplicates = %d, want 2", len(duplicates))
	}
}
