package testutil

import (
	"testing"

	"github.com/arthur-debert/livestore/livestore"
)

func TestFixtureShape(t *testing.T) {
	f := NewFixture(t, 1)

	if got := f.Root.Get("title"); got != "untitled" {
		t.Errorf("title = %v, want untitled", got)
	}
	if got := f.Profile.Get("name"); got != "ada" {
		t.Errorf("profile name = %v, want ada", got)
	}
	if got := f.Tags.Length(); got != 2 {
		t.Errorf("tags length = %d, want 2", got)
	}
	// Root + map + 2 registers + list + 2 registers.
	AssertNodeCount(t, f.Doc, 7)
	AssertAttached(t, f.Doc, f.Profile)
	AssertAttached(t, f.Doc, f.Tags)

	if len(f.Sent) != 0 {
		t.Errorf("fixture should start with a drained op buffer")
	}
}

func TestFixtureDrainAndApply(t *testing.T) {
	f := NewFixture(t, 1)

	peer, err := livestore.Load(f.Doc.Serialize(), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Profile.Set("score", float64(11)); err != nil {
		t.Fatal(err)
	}
	f.ApplyTo(peer)

	AssertTreeEqual(t, f.Doc, peer)
	if len(f.Sent) != 0 {
		t.Errorf("ApplyTo should drain the buffer")
	}
}
