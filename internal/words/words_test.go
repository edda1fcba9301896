package words

import "testing"

func TestConcatAndPrefixes(t *testing.T) {
	w := Concat(Word[string]{"a", "b"}, Word[string]{"c"})
	if !Equal(w, Word[string]{"a", "b", "c"}) {
		t.Fatalf("Concat() = %v, want [a b c]", w)
	}

	prefixes := Prefixes(Word[string]{"a", "b", "c"})
	want := []Word[string]{{"a"}, {"a", "b"}, {"a", "b", "c"}}
	if len(prefixes) != len(want) {
		t.Fatalf("Prefixes() = %v, want %v", prefixes, want)
	}
	for i := range prefixes {
		if !Equal(prefixes[i], want[i]) {
			t.Fatalf("Prefixes()[%d] = %v, want %v", i, prefixes[i], want[i])
		}
	}
}

func TestRowEqual(t *testing.T) {
	r1 := Row[string]{{"0"}, {"1"}}
	r2 := Row[string]{{"0"}, {"1"}}
	r3 := Row[string]{{"0"}, {"0"}}

	if !r1.Equal(r2) {
		t.Error("identical rows reported unequal")
	}
	if r1.Equal(r3) {
		t.Error("differing rows reported equal")
	}
	if r1.Key() != r2.Key() {
		t.Error("identical rows have different keys")
	}
	if r1.Key() == r3.Key() {
		t.Error("differing rows have the same key")
	}
}

func TestSetAddAndOrder(t *testing.T) {
	s := NewSet[string]()
	s.Add(Word[string]{})
	s.Add(Word[string]{"a"})
	s.Add(Word[string]{"a"}) // duplicate, should not reorder or recount
	s.Add(Word[string]{"b"})

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if s.ChangeCounter() != 3 {
		t.Fatalf("ChangeCounter() = %d, want 3", s.ChangeCounter())
	}

	got := s.Slice()
	want := []Word[string]{{}, {"a"}, {"b"}}
	if len(got) != len(want) {
		t.Fatalf("Slice() = %v, want %v", got, want)
	}
	for i := range got {
		if !Equal(got[i], want[i]) {
			t.Fatalf("Slice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if !s.Contains(Word[string]{"a"}) {
		t.Error("Contains([a]) = false, want true")
	}
	if s.Contains(Word[string]{"c"}) {
		t.Error("Contains([c]) = true, want false")
	}
}
