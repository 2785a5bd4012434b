package list

// conflict.go implements the set operations of the conflict resolver.
// All functions are pure and keyed by the natural key; reference sets
// are membership maps so repeated checks stay O(1) per record.

// KeySet builds a membership map from records.
func KeySet(records []Record) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		set[r.Key] = true
	}
	return set
}

// SplitResult partitions an incoming batch against a reference set.
type SplitResult struct {
	Valid      []Record
	Duplicates []Record
}

// CheckDuplicates partitions incoming records by membership in the
// reference set: records whose key already exists there are duplicates.
// Records are tested independently of each other.
func CheckDuplicates(reference map[string]bool, incoming []Record) SplitResult {
	res := SplitResult{}
	for _, r := range incoming {
		if reference[r.Key] {
			res.Duplicates = append(res.Duplicates, r)
		} else {
			res.Valid = append(res.Valid, r)
		}
	}
	return res
}

// ExistsResult partitions an incoming batch by presence in a reference set.
type ExistsResult struct {
	Found    []Record
	NotFound []Record
}

// VerifyExists is the complement of CheckDuplicates: it routes records
// whose key is absent from the reference set to NotFound. Used for
// removals, which must target a genuinely active record.
func VerifyExists(reference map[string]bool, incoming []Record) ExistsResult {
	res := ExistsResult{}
	for _, r := range incoming {
		if reference[r.Key] {
			res.Found = append(res.Found, r)
		} else {
			res.NotFound = append(res.NotFound, r)
		}
	}
	return res
}

// DedupeWithin resolves duplicate keys inside one batch: the first
// occurrence wins, later occurrences are returned separately.
func DedupeWithin(incoming []Record) (unique, duplicates []Record) {
	seen := make(map[string]bool, len(incoming))
	for _, r := range incoming {
		if seen[r.Key] {
			duplicates = append(duplicates, r)
			continue
		}
		seen[r.Key] = true
		unique = append(unique, r)
	}
	return unique, duplicates
}
