package mirrorlist

import "testing"

func sample() []Mirror {
	return []Mirror{
		{URL: "https://a/", Name: "A"},
		{URL: "https://b/", Name: "B"},
		{URL: "https://c/", Name: "C"},
	}
}

func TestMoveUpDown(t *testing.T) {
	l := New(sample())
	l.MoveUp(1)
	if l.All()[0].Name != "B" {
		t.Fatalf("expected B first after MoveUp(1), got %+v", l.All())
	}
	l.MoveDown(0)
	if l.All()[0].Name != "A" {
		t.Fatalf("expected A first after MoveDown(0), got %+v", l.All())
	}
}

func TestMoveOutOfRangeIsNoop(t *testing.T) {
	l := New(sample())
	before := l.All()
	l.MoveUp(0)
	l.MoveUp(-1)
	l.MoveUp(99)
	l.MoveDown(2)
	l.MoveDown(99)
	after := l.All()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("expected no-op, got %+v vs %+v", before, after)
		}
	}
}

func TestApplyUserPriority(t *testing.T) {
	l := New(sample())
	l.ApplyUserPriority([]string{"C", "A"})
	got := l.All()
	want := []string{"C", "A", "B"}
	for i, w := range want {
		if got[i].Name != w {
			t.Fatalf("expected order %v, got %+v", want, got)
		}
	}
}

func TestAdvanceWrapsAndReportsExhaustion(t *testing.T) {
	l := New(sample())
	if l.Advance() {
		t.Fatal("did not expect wrap on first advance")
	}
	if l.Advance() {
		t.Fatal("did not expect wrap on second advance")
	}
	if !l.Advance() {
		t.Fatal("expected wrap on third advance")
	}
	if l.CurrentIndex() != 0 {
		t.Fatalf("expected cursor reset to 0, got %v", l.CurrentIndex())
	}
}

func TestIdempotentFailoverOnWorkingMirror(t *testing.T) {
	l := New(sample())
	m1, _ := l.Current()
	m2, _ := l.Current()
	if m1 != m2 || l.CurrentIndex() != 0 {
		t.Fatal("two successive checks against a working mirror must not move the cursor")
	}
}
