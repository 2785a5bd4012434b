package lists

import (
	"testing"

	"github.com/rcastellanos/fareacl/internal/list"
)

func TestAllListsRegistered(t *testing.T) {
	want := []string{"blacklist", "lss_tcsm", "lss_timt", "sam_inventory", "whitelist", "whitelist_cv"}

	if got := list.Count(); got != len(want) {
		t.Fatalf("registered lists = %d, want %d", got, len(want))
	}
	for _, key := range want {
		if _, ok := list.Get(key); !ok {
			t.Errorf("list %q not registered", key)
		}
	}
}

func TestBlacklistOperations(t *testing.T) {
	def, ok := list.Get("blacklist")
	if !ok {
		t.Fatal("blacklist not registered")
	}
	if !def.MultiOrg {
		t.Error("blacklist must bucket records by organization")
	}
	if !def.StolenCheck {
		t.Error("blacklist removals must be checked against the stolen registry")
	}
	if def.Supports(list.OpModifications) {
		t.Error("blacklist must not accept cambios files")
	}
	if !def.Supports(list.OpAdditions) || !def.Supports(list.OpRemovals) {
		t.Error("blacklist must accept altas and bajas files")
	}
}

func TestBlacklistValidation(t *testing.T) {
	def, _ := list.Get("blacklist")

	tests := []struct {
		name    string
		row     list.Row
		wantErr bool
	}{
		{
			name: "valid",
			row: list.Row{
				"card_type":          "02",
				"card_serial_number": "AABBCCDD",
				"priority":           "1",
				"blacklisting_date":  "2024-03-15",
			},
		},
		{
			name: "unknown card type",
			row: list.Row{
				"card_type":          "99",
				"card_serial_number": "AABBCCDD",
				"priority":           "1",
				"blacklisting_date":  "2024-03-15",
			},
			wantErr: true,
		},
		{
			name: "priority out of catalog",
			row: list.Row{
				"card_type":          "02",
				"card_serial_number": "AABBCCDD",
				"priority":           "5",
				"blacklisting_date":  "2024-03-15",
			},
			wantErr: true,
		},
		{
			name: "impossible date",
			row: list.Row{
				"card_type":          "02",
				"card_serial_number": "AABBCCDD",
				"priority":           "1",
				"blacklisting_date":  "2023-02-30",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := list.ValidateRows(def, []list.Row{tt.row}, "01")
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("errors = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestWhitelistConfigCatalogs(t *testing.T) {
	row := func(config string) list.Row {
		return list.Row{
			"SERIAL_DEC":  "255",
			"SERIAL_HEX":  "FF",
			"CONFIG":      config,
			"OPERATOR":    "01",
			"LOCATION_ID": "0001",
		}
	}

	std, _ := list.Get("whitelist")
	cv, _ := list.Get("whitelist_cv")

	if _, errs := list.ValidateRows(std, []list.Row{row("CP")}, ""); len(errs) != 0 {
		t.Errorf("CP must be valid on the standard whitelist: %v", errs)
	}
	if _, errs := list.ValidateRows(std, []list.Row{row("CV")}, ""); len(errs) == 0 {
		t.Error("CV must be rejected on the standard whitelist")
	}
	if _, errs := list.ValidateRows(cv, []list.Row{row("CV")}, ""); len(errs) != 0 {
		t.Errorf("CV must be valid on the CV whitelist: %v", errs)
	}
	if _, errs := list.ValidateRows(cv, []list.Row{row("CPP")}, ""); len(errs) == 0 {
		t.Error("CPP must be rejected on the CV whitelist")
	}
}

func TestSamInventoryDerivesInventoryID(t *testing.T) {
	def, ok := list.Get("sam_inventory")
	if !ok {
		t.Fatal("sam_inventory not registered")
	}

	records, errs := list.ValidateRows(def, []list.Row{{
		"SERIAL_DEC":  "255",
		"SERIAL_HEX":  "ff",
		"CONFIG":      "CP",
		"OPERATOR":    "3C",
		"LOCATION_ID": "0001",
	}}, "")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if got := records[0].Fields["inventory_id"]; got != "3CFF" {
		t.Errorf("inventory_id = %q, want %q", got, "3CFF")
	}

	// The derived column is persisted but never expected in the CSV.
	for _, col := range def.InputColumns() {
		if col == "inventory_id" {
			t.Error("inventory_id must not be a required CSV header")
		}
	}
	found := false
	for _, col := range def.DBColumns() {
		if col == "inventory_id" {
			found = true
		}
	}
	if !found {
		t.Error("inventory_id missing from database columns")
	}
}

func TestTimeRestrictionRules(t *testing.T) {
	def, _ := list.Get("lss_timt")

	valid := list.Row{
		"serial_hex":  "0012ABCD",
		"location_id": "00AB12",
		"dias":        "65",
		"horario":     "06:00-22:30",
	}
	if _, errs := list.ValidateRows(def, []list.Row{valid}, ""); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	bad := list.Row{
		"serial_hex":  "0012ABCD",
		"location_id": "00AB12",
		"dias":        "65",
		"horario":     "22:00-06:00",
	}
	if _, errs := list.ValidateRows(def, []list.Row{bad}, ""); len(errs) == 0 {
		t.Error("inverted time window must be rejected")
	}
}
