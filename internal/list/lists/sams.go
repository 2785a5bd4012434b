package lists

import (
	"github.com/rcastellanos/fareacl/internal/catalog"
	"github.com/rcastellanos/fareacl/internal/list"
)

func init() {
	registerWhitelist()
	registerWhitelistCV()
	registerSamInventory()
}

// samFields is the shared schema of the SAM-device lists. ESTACION is
// free text typed by operators, so it is optional and normalized to
// diacritic-stripped uppercase before comparison.
func samFields() []list.FieldSpec {
	return []list.FieldSpec{
		{Name: "SERIAL_DEC"},
		{Name: "SERIAL_HEX", Normalize: list.NormalizeHex},
		{Name: "CONFIG", Normalize: list.NormalizeHex},
		{Name: "OPERATOR"},
		{Name: "LOCATION_ID", Normalize: list.NormalizeHex},
		{Name: "ESTACION", Optional: true, Normalize: list.NormalizeText},
	}
}

// samRules is the shared rule prefix: serial cross-check, then config
// catalog for the variant, then operator catalog, then location bound.
func samRules(configs []string) []list.Rule {
	return []list.Rule{
		list.SerialsMatch("SERIAL_DEC", "SERIAL_HEX"),
		list.CodeIn("CONFIG", configs),
		list.CodeIn("OPERATOR", catalog.OperatorCodes),
		list.MaxLen("LOCATION_ID", 6),
	}
}

func registerWhitelist() {
	list.Register(list.Definition{
		Key:             "whitelist",
		Label:           "SAM whitelist",
		Table:           "whitelist_sams",
		FilePrefix:      "listablanca_sams",
		TimestampDigits: 12,
		Fields:          samFields(),
		KeyField:        "SERIAL_HEX",
		Rules:           samRules(catalog.SamConfigsStandard),
		Operations:      []list.Operation{list.OpAdditions, list.OpRemovals, list.OpModifications},
	})
}

func registerWhitelistCV() {
	list.Register(list.Definition{
		Key:             "whitelist_cv",
		Label:           "SAM whitelist (CV variant)",
		Table:           "whitelist_sams_cv",
		FilePrefix:      "listablanca_sams_cv",
		TimestampDigits: 12,
		Fields:          samFields(),
		KeyField:        "SERIAL_HEX",
		Rules:           samRules(catalog.SamConfigsCV),
		Operations:      []list.Operation{list.OpAdditions, list.OpRemovals, list.OpModifications},
	})
}

// registerSamInventory defines the SAM production inventory. It derives
// an inventory id from the operator code and the hex serial, the handle
// production tooling uses to address a single SAM.
func registerSamInventory() {
	fields := append(samFields(), list.FieldSpec{Name: "inventory_id", Derived: true})
	rules := append(samRules(catalog.SamConfigsStandard),
		list.Derive("inventory_id", func(rec *list.Record) string {
			return rec.Fields["OPERATOR"] + rec.Fields["SERIAL_HEX"]
		}),
	)

	list.Register(list.Definition{
		Key:             "sam_inventory",
		Label:           "SAM production inventory",
		Table:           "sam_inventory",
		FilePrefix:      "inventario_sams",
		TimestampDigits: 12,
		Fields:          fields,
		KeyField:        "SERIAL_HEX",
		Rules:           rules,
		Operations:      []list.Operation{list.OpAdditions, list.OpRemovals, list.OpModifications},
	})
}
