package lists

import (
	"github.com/rcastellanos/fareacl/internal/catalog"
	"github.com/rcastellanos/fareacl/internal/list"
)

func init() {
	registerBlacklist()
}

// registerBlacklist defines the card blacklist: the multi-organization
// list of blocked fare cards. Removals are cross-checked against the
// stolen-card registry so a stolen card cannot be quietly unblocked.
func registerBlacklist() {
	list.Register(list.Definition{
		Key:             "blacklist",
		Label:           "Card blacklist",
		Table:           "blacklist_cards",
		FilePrefix:      "listanegra_tarjetas",
		TimestampDigits: 14,
		Fields: []list.FieldSpec{
			{Name: "card_type"},
			{Name: "card_serial_number", Normalize: list.NormalizeHex},
			{Name: "priority"},
			{Name: "blacklisting_date"},
		},
		KeyField: "card_serial_number",
		Rules: []list.Rule{
			list.CodeIn("card_type", catalog.CardTypes),
			list.CodeIn("priority", catalog.Priorities),
			list.CalendarDate("blacklisting_date"),
		},
		Operations:  []list.Operation{list.OpAdditions, list.OpRemovals},
		MultiOrg:    true,
		StolenCheck: true,
	})
}
