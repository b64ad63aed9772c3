package csvrow

import "testing"

func TestParseKnownAndExtraColumns(t *testing.T) {
	header := []string{"email", "org_id", "team"}
	record := []string{"a@example.com", "org_1", "platform"}

	row, err := Parse(header, record, 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if row.Email != "a@example.com" {
		t.Errorf("email = %q", row.Email)
	}
	if row.OrgID != "org_1" {
		t.Errorf("org_id = %q", row.OrgID)
	}
	if row.Extra["team"] != "platform" {
		t.Errorf("expected unknown column preserved in Extra, got %q", row.Extra["team"])
	}
}

func TestParseMismatchedLength(t *testing.T) {
	_, err := Parse([]string{"email"}, []string{"a@example.com", "extra"}, 3)
	if err == nil {
		t.Fatal("expected error for mismatched field count")
	}
}

func TestUnknownColumns(t *testing.T) {
	got := UnknownColumns([]string{"email", "team", "org_id"})
	if len(got) != 1 || got[0] != "team" {
		t.Errorf("UnknownColumns = %v", got)
	}
}

func TestParseEmailVerified(t *testing.T) {
	cases := []struct {
		raw       string
		wantVal   bool
		wantIsSet bool
	}{
		{"", false, false},
		{"true", true, true},
		{"YES", true, true},
		{"0", false, true},
		{"garbage", false, false},
	}
	for _, c := range cases {
		row := Row{EmailVerified: c.raw}
		gotVal, gotSet := row.ParseEmailVerified()
		if gotVal != c.wantVal || gotSet != c.wantIsSet {
			t.Errorf("ParseEmailVerified(%q) = (%v, %v), want (%v, %v)", c.raw, gotVal, gotSet, c.wantVal, c.wantIsSet)
		}
	}
}

func TestMergedRoleSlugsDedupesAndMerges(t *testing.T) {
	row := Row{ExternalID: "ext_1", RoleSlugs: `["admin","member"]`}
	mapping := map[string][]string{"ext_1": {"member", "billing"}}

	got := row.MergedRoleSlugs(mapping)
	want := []string{"admin", "member", "billing"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMergedRoleSlugsCSVForm(t *testing.T) {
	row := Row{RoleSlugs: "admin, member ,admin"}
	got := row.MergedRoleSlugs(nil)
	want := []string{"admin", "member"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseMetadata(t *testing.T) {
	row := Row{Metadata: `{"team":"platform"}`}
	m, err := row.ParseMetadata()
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if m["team"] != "platform" {
		t.Errorf("metadata = %v", m)
	}

	blank := Row{}
	m, err = blank.ParseMetadata()
	if err != nil || m != nil {
		t.Errorf("expected nil map for blank metadata, got %v, %v", m, err)
	}

	bad := Row{Metadata: "{not json"}
	if _, err := bad.ParseMetadata(); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
