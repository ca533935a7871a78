package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRulesAreComplete(t *testing.T) {
	rules := DefaultRules()

	if len(rules.Settlement.Rows) == 0 {
		t.Fatalf("default settlement table is empty")
	}
	for _, row := range rules.Settlement.Rows {
		var total int64
		for _, s := range row.Shares {
			total += s.Bps
		}
		if total != 10_000 {
			t.Fatalf("row (%s, %s) sums to %d bps", row.Role, row.Mode, total)
		}
	}

	if rules.Network.Prefixes["082"] == "" {
		t.Fatalf("default prefix table missing 082")
	}
	if rules.Allocation.CapRatio <= 0 || rules.Allocation.CapRatio > 1 {
		t.Fatalf("cap ratio out of range: %v", rules.Allocation.CapRatio)
	}
}

func TestLoadRulesEmptyPathUsesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if rules.Network.CountryCode != "27" {
		t.Fatalf("unexpected country code %q", rules.Network.CountryCode)
	}
}

func TestLoadRulesOverridesSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	body := "[eligibility]\nairtime_threshold = 250\ndata_threshold = 2000\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if rules.Eligibility.AirtimeThreshold != 250 {
		t.Fatalf("override not applied: %v", rules.Eligibility.AirtimeThreshold)
	}
	// Untouched sections keep their defaults.
	if rules.Network.Prefixes["083"] != "MTN" {
		t.Fatalf("defaults lost on partial override")
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if _, err := LoadRules("/nonexistent/rules.toml"); err == nil {
		t.Fatalf("expected error for missing rules file")
	}
}
