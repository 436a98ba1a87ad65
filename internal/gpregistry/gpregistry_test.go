package gpregistry

import (
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return b
}

func TestParseApplicationsModern(t *testing.T) {
	// Worked example from the worked-scenarios table: an application record.
	data := mustHex(t, "E31B4F07A00000000300009F700107C5028080C408A000000151000000")
	apps, err := ParseApplications(data)
	if err != nil {
		t.Fatalf("ParseApplications: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("want 1 application, got %d", len(apps))
	}
	app := apps[0]
	if hex.EncodeToString(app.AID) != "a0000000030000" {
		t.Errorf("aid = %x", app.AID)
	}
	if app.LifeCycle != "SELECTABLE" {
		t.Errorf("life cycle = %s, want SELECTABLE", app.LifeCycle)
	}
	want := []string{"Security Domain", "Trusted Path"}
	if len(app.Privileges) != len(want) {
		t.Fatalf("privileges = %v, want %v", app.Privileges, want)
	}
	for i := range want {
		if app.Privileges[i] != want[i] {
			t.Errorf("privileges[%d] = %s, want %s", i, app.Privileges[i], want[i])
		}
	}
	if hex.EncodeToString(app.AssociatedPackage) != "a000000151000000" {
		t.Errorf("associated package = %x", app.AssociatedPackage)
	}
}

func TestParseApplicationsDeprecated(t *testing.T) {
	// aid_len aid life_cycle priv
	data := mustHex(t, "05A0000000030700")
	apps, err := ParseApplications(data)
	if err != nil {
		t.Fatalf("ParseApplications: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("want 1 application, got %d", len(apps))
	}
	if apps[0].LifeCycle != "SELECTABLE" {
		t.Errorf("life cycle = %s, want SELECTABLE", apps[0].LifeCycle)
	}
}

func TestLifeCycleLabelApplication(t *testing.T) {
	cases := []struct {
		raw  byte
		want string
	}{
		{0x03, "INSTALLED"},
		{0x07, "SELECTABLE"},
		{0x0F, "PERSONALIZED"},
		{0x83, "LOCKED"},
		{0x43, "APP-SPECIFIC"},
		{0x00, "UNKNOWN"},
	}
	for _, c := range cases {
		if got := LifeCycleLabel(c.raw, ComponentApplication); got != c.want {
			t.Errorf("LifeCycleLabel(%#x) = %s, want %s", c.raw, got, c.want)
		}
	}
}

func TestLifeCycleLabelPackage(t *testing.T) {
	if got := LifeCycleLabel(0x01, ComponentPackage); got != "LOADED" {
		t.Errorf("got %s, want LOADED", got)
	}
	if got := LifeCycleLabel(0x00, ComponentPackage); got != "UNKNOWN" {
		t.Errorf("got %s, want UNKNOWN", got)
	}
}

func TestParsePackagesDeprecated(t *testing.T) {
	// aid_len aid life_cycle priv(deprecated) num_classes (class_aid_len class_aid)*
	data := mustHex(t, "05A000000003010001054243414243")
	pkgs, err := ParsePackages(data)
	if err != nil {
		t.Fatalf("ParsePackages: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("want 1 package, got %d", len(pkgs))
	}
	if pkgs[0].LifeCycle != "LOADED" {
		t.Errorf("life cycle = %s, want LOADED", pkgs[0].LifeCycle)
	}
	if len(pkgs[0].AppletClassAIDs) != 1 {
		t.Fatalf("want 1 applet class aid, got %d", len(pkgs[0].AppletClassAIDs))
	}
}
