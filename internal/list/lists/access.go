package lists

import (
	"regexp"

	"github.com/rcastellanos/fareacl/internal/list"
)

func init() {
	registerTimeRestrictions()
	registerZoneRestrictions()
}

var (
	hex8Re = regexp.MustCompile(`^[0-9A-F]{8}$`)
	hex6Re = regexp.MustCompile(`^[0-9A-F]{6}$`)
)

// registerTimeRestrictions defines the time-window access list: per-SAM
// rules restricting when a device may operate at a location.
func registerTimeRestrictions() {
	list.Register(list.Definition{
		Key:             "lss_timt",
		Label:           "SAM time restrictions",
		Table:           "lss_timt",
		FilePrefix:      "lss_timt",
		TimestampDigits: 12,
		Fields: []list.FieldSpec{
			{Name: "serial_hex", Normalize: list.NormalizeHex},
			{Name: "location_id", Normalize: list.NormalizeHex},
			{Name: "dias"},
			{Name: "horario"},
		},
		KeyField: "serial_hex",
		Rules: []list.Rule{
			list.Matches("serial_hex", hex8Re, "8-digit hex serial"),
			list.Matches("location_id", hex6Re, "6-digit hex location"),
			list.DayBitmap("dias"),
			list.TimeWindow("horario"),
		},
		Operations: []list.Operation{list.OpAdditions, list.OpRemovals, list.OpModifications},
	})
}

// registerZoneRestrictions defines the zone access list: same shape as
// the time list but keyed to a fare zone instead of a location.
func registerZoneRestrictions() {
	list.Register(list.Definition{
		Key:             "lss_tcsm",
		Label:           "SAM zone restrictions",
		Table:           "lss_tcsm",
		FilePrefix:      "lss_tcsm",
		TimestampDigits: 12,
		Fields: []list.FieldSpec{
			{Name: "serial_hex", Normalize: list.NormalizeHex},
			{Name: "location_zone", Normalize: list.NormalizeHex},
			{Name: "dias"},
			{Name: "horario"},
		},
		KeyField: "serial_hex",
		Rules: []list.Rule{
			list.Matches("serial_hex", hex8Re, "8-digit hex serial"),
			list.Matches("location_zone", hex6Re, "6-digit hex zone"),
			list.DayBitmap("dias"),
			list.TimeWindow("horario"),
		},
		Operations: []list.Operation{list.OpAdditions, list.OpRemovals, list.OpModifications},
	})
}
