package world

import (
	"testing"

	"github.com/goliatone/go-worldstore/attr"
)

func TestContents_AddRemove(t *testing.T) {
	room := &Place{Name: "room"}
	cup := &Thing{Name: "cup"}
	spoon := &Thing{Name: "spoon"}

	room.AddContent(cup)
	room.AddContent(spoon)
	room.AddContent(cup)
	if got := room.ContentNames(); len(got) != 2 || got[0] != "cup" || got[1] != "spoon" {
		t.Fatalf("unexpected contents %v", got)
	}

	room.RemoveContent("cup")
	if got := room.ContentNames(); len(got) != 1 || got[0] != "spoon" {
		t.Fatalf("unexpected contents after removal %v", got)
	}
	room.RemoveContent("nothing")
	if len(room.Contents) != 1 {
		t.Error("removing an absent thing must be a no-op")
	}
}

func TestPlace_Portals(t *testing.T) {
	a := &Place{Name: "a"}
	b := &Place{Name: "b"}
	p := &Portal{Name: PortalName("a", "b"), Origin: a, Destination: b}
	a.AddPortal(p)
	a.AddPortal(p)
	if len(a.Portals) != 1 {
		t.Fatalf("expected one portal, got %d", len(a.Portals))
	}
	a.RemovePortal(p.Name)
	if len(a.Portals) != 0 {
		t.Error("expected portal to be removed")
	}
}

func TestReciprocalName(t *testing.T) {
	if got := PortalName("kitchen", "hall"); got != "portal[kitchen->hall]" {
		t.Errorf("unexpected portal name %q", got)
	}
	if got := ReciprocalName("kitchen", "hall"); got != "portal[hall->kitchen]" {
		t.Errorf("unexpected reciprocal name %q", got)
	}
}

func TestAttributes(t *testing.T) {
	var item Item = &Thing{Name: "goblin"}
	item.SetAttribute("hp", attr.Int(5))
	if v, ok := item.Attribute("hp"); !ok || !v.Equal(attr.Int(5)) {
		t.Fatalf("expected hp=5, got %v, %v", v, ok)
	}
	item.UnsetAttribute("hp")
	if _, ok := item.Attribute("hp"); ok {
		t.Error("expected hp to be unset")
	}
}

func TestKind(t *testing.T) {
	for _, k := range Kinds() {
		back, err := ParseKind(k.String())
		if err != nil || back != k {
			t.Errorf("kind %v did not survive its name: %v, %v", k, back, err)
		}
	}
	if len(Kinds()) != 15 {
		t.Errorf("expected 15 kinds, got %d", len(Kinds()))
	}
	if _, err := ParseKind("nope"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
