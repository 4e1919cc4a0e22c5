package historydao

import (
	"testing"
)

func TestPKRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		app  string
		env  string
	}{
		{name: "standard app", app: "web", env: "dev"},
		{name: "hyphenated app", app: "my-service", env: "staging"},
		{name: "production", app: "frontend", env: "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pk := NewPK(tt.app, tt.env)

			app, env, err := ParsePK(pk)
			if err != nil {
				t.Fatalf("ParsePK() error: %v", err)
			}
			if app != tt.app || env != tt.env {
				t.Errorf("ParsePK() = (%q, %q), want (%q, %q)", app, env, tt.app, tt.env)
			}
		})
	}
}

func TestParsePKInvalid(t *testing.T) {
	tests := []struct {
		name string
		pk   PK
	}{
		{name: "no separator", pk: PK("webdev")},
		{name: "too many separators", pk: PK("web/dev/extra")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParsePK(tt.pk); err == nil {
				t.Errorf("ParsePK(%q) expected error", tt.pk)
			}
		})
	}
}

func TestIDRoundTrip(t *testing.T) {
	pk := NewPK("web", "dev")
	id := NewID(pk, "2HFj3kLmNoPqRsTuVwXy")

	if id.String() != "web/dev:2HFj3kLmNoPqRsTuVwXy" {
		t.Errorf("ID = %q", id)
	}

	gotPK, gotSK, err := ParseID(id)
	if err != nil {
		t.Fatalf("ParseID() error: %v", err)
	}
	if gotPK != pk {
		t.Errorf("ParseID() pk = %q, want %q", gotPK, pk)
	}
	if gotSK != "2HFj3kLmNoPqRsTuVwXy" {
		t.Errorf("ParseID() sk = %q", gotSK)
	}
}

func TestParseIDInvalid(t *testing.T) {
	if _, _, err := ParseID(ID("no-separator")); err == nil {
		t.Error("ParseID() expected error for missing colon")
	}
}

func TestGetIDPrefersExplicitID(t *testing.T) {
	record := Record{
		PK: NewPK("latest", "dev"),
		SK: "web/dev",
		ID: NewID(NewPK("web", "dev"), "2HFj3kLmNoPqRsTuVwXy"),
	}
	if got := record.GetID(); got != "web/dev:2HFj3kLmNoPqRsTuVwXy" {
		t.Errorf("GetID() = %q", got)
	}

	record.ID = ""
	record.PK = NewPK("web", "dev")
	record.SK = "2HFj3kLmNoPqRsTuVwXy"
	if got := record.GetID(); got != "web/dev:2HFj3kLmNoPqRsTuVwXy" {
		t.Errorf("GetID() fallback = %q", got)
	}
}

func TestTableName(t *testing.T) {
	if got := TableName("dev"); got != "dev-ecs-deployer-history" {
		t.Errorf("TableName() = %q", got)
	}
}

func TestResolveTableName(t *testing.T) {
	// Readers and writers must land on the same table whether or not a name
	// is configured.
	if got := ResolveTableName("", "dev"); got != "dev-ecs-deployer-history" {
		t.Errorf("ResolveTableName(unset) = %q", got)
	}
	if got := ResolveTableName("deploy-history", "dev"); got != "deploy-history" {
		t.Errorf("ResolveTableName(configured) = %q", got)
	}
}
