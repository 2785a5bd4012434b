// Package catalog holds the static reference data of the fare network:
// operator codes, SAM configuration codes, card types and priorities.
// These sets are configuration, not derived data; validation consults
// them but never modifies them.
package catalog

// OperatorCodes are the issuing organizations of the transport network,
// as two-character codes embedded in filenames and OPERATOR columns.
var OperatorCodes = []string{
	"01", "02", "03", "04", "05", "06", "07",
	"15", "32", "3C", "46", "5A", "64",
}

// SamConfigsStandard are the configuration codes accepted on the
// standard SAM whitelist and the production inventory.
var SamConfigsStandard = []string{"CP", "CL", "CPP"}

// SamConfigsCV are the configuration codes accepted on the CV variant
// of the SAM whitelist.
var SamConfigsCV = []string{"CV", "UCV+"}

// CardTypes are the card product types accepted on the card blacklist.
var CardTypes = []string{"02", "03", "04"}

// Priorities are the accepted blacklisting priority levels.
var Priorities = []string{"1", "2", "3", "4"}

// Set returns a membership map for a code list.
func Set(codes []string) map[string]bool {
	m := make(map[string]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m
}

// IsOperator reports whether code is a known operator code.
func IsOperator(code string) bool {
	for _, c := range OperatorCodes {
		if c == code {
			return true
		}
	}
	return false
}
