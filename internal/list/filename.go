package list

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rcastellanos/fareacl/internal/catalog"
)

// FileLabel is the routing information carried by a submitted filename:
// which bucket the file feeds and which organization issued it.
type FileLabel struct {
	Op        Operation
	Org       string
	Timestamp string
}

var (
	patternMu sync.Mutex
	patterns  = make(map[string]*regexp.Regexp)
)

// filePattern compiles (once) the filename pattern of a definition:
// <prefix>_<bucket>_<org:2 hex>_<timestamp:N digits>.csv
func filePattern(def Definition) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()

	if re, ok := patterns[def.Key]; ok {
		return re
	}
	expr := fmt.Sprintf(`^%s_(altas|bajas|cambios)_([0-9A-Fa-f]{2})_(\d{%d})\.csv$`,
		regexp.QuoteMeta(def.FilePrefix), def.TimestampDigits)
	re := regexp.MustCompile(expr)
	patterns[def.Key] = re
	return re
}

// ParseFileName checks a submitted filename against the list's naming
// convention and extracts its routing label. The bucket must be one the
// list accepts and the organization must be a known operator.
func ParseFileName(def Definition, name string) (FileLabel, error) {
	m := filePattern(def).FindStringSubmatch(name)
	if m == nil {
		return FileLabel{}, fmt.Errorf("filename %q does not match pattern %s_<%s>_<org>_<timestamp>.csv",
			name, def.FilePrefix, opAlternatives(def))
	}

	label := FileLabel{
		Op:        Operation(m[1]),
		Org:       strings.ToUpper(m[2]),
		Timestamp: m[3],
	}

	if !def.Supports(label.Op) {
		return FileLabel{}, fmt.Errorf("list %s does not accept %s files", def.Key, label.Op)
	}
	if !catalog.IsOperator(label.Org) {
		return FileLabel{}, fmt.Errorf("unknown organization code %q in filename %q", label.Org, name)
	}

	return label, nil
}

func opAlternatives(def Definition) string {
	ops := make([]string, len(def.Operations))
	for i, op := range def.Operations {
		ops[i] = string(op)
	}
	return strings.Join(ops, "|")
}
