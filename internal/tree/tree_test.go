package tree

import (
	"slices"
	"testing"

	"github.com/fruitsalade/swalang/internal/models"
)

func folder(id, name string) models.Node {
	return models.Node{ID: id, Name: name, IsFolder: true}
}

func file(id, name string) models.Node {
	return models.Node{ID: id, Name: name}
}

func TestSortedFoldersFirst(t *testing.T) {
	nodes := []models.Node{
		file("1", "b.txt"),
		folder("2", "zeta"),
		file("3", "Alpha.txt"),
		folder("4", "Beta"),
		folder("5", "alpha"),
	}

	got := Names(Sorted(nodes))
	want := []string{"alpha", "Beta", "zeta", "Alpha.txt", "b.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Sorted = %v, want %v", got, want)
	}

	// Input untouched
	if nodes[0].Name != "b.txt" {
		t.Error("Sorted modified its input")
	}
}

func TestSortedCaseInsensitive(t *testing.T) {
	nodes := []models.Node{file("1", "banana"), file("2", "Apple"), file("3", "cherry")}
	got := Names(Sorted(nodes))
	want := []string{"Apple", "banana", "cherry"}
	if !slices.Equal(got, want) {
		t.Errorf("Sorted = %v, want %v", got, want)
	}
}

func TestSortedNil(t *testing.T) {
	got := Sorted(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Sorted(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestInsert(t *testing.T) {
	base := []models.Node{folder("1", "docs"), file("2", "b.txt")}

	out := Insert(base, file("3", "A.txt"))
	got := Names(out)
	want := []string{"docs", "A.txt", "b.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Insert = %v, want %v", got, want)
	}
	if len(base) != 2 {
		t.Errorf("Insert changed input length to %d", len(base))
	}
	if !IsSorted(out) {
		t.Error("Insert result not sorted")
	}
}

func TestReplace(t *testing.T) {
	base := []models.Node{file("1", "a.txt"), file("2", "b.txt")}

	out, ok := Replace(base, file("1", "z.txt"))
	if !ok {
		t.Fatal("Replace existing node returned ok=false")
	}
	if got := Names(out); !slices.Equal(got, []string{"b.txt", "z.txt"}) {
		t.Errorf("Replace = %v", got)
	}
	if base[0].Name != "a.txt" {
		t.Error("Replace modified its input")
	}

	same, ok := Replace(base, file("9", "x"))
	if ok {
		t.Error("Replace missing node returned ok=true")
	}
	if len(same) != 2 {
		t.Errorf("Replace missing node changed length: %d", len(same))
	}
}

func TestRemove(t *testing.T) {
	base := []models.Node{file("a", "a"), file("b", "b"), file("c", "c")}

	out, ok := Remove(base, "b")
	if !ok {
		t.Fatal("Remove existing returned ok=false")
	}
	if got := Names(out); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("Remove = %v", got)
	}
	if len(base) != 3 || base[1].ID != "b" {
		t.Error("Remove modified its input")
	}

	// Remove nonexistent: no-op
	if _, ok := Remove(base, "z"); ok {
		t.Error("Remove nonexistent returned ok=true")
	}
}

func TestCountAndFind(t *testing.T) {
	byParent := map[models.ParentKey][]models.Node{
		models.RootKey: {folder("d", "dir"), file("a", "a.txt")},
		"d":            {file("b", "b.txt")},
	}
	if got := CountNodes(byParent); got != 3 {
		t.Errorf("CountNodes = %d, want 3", got)
	}
	if n, ok := FindByID(byParent, "b"); !ok || n.Name != "b.txt" {
		t.Errorf("FindByID(b) = %v, %v", n, ok)
	}
	if _, ok := FindByID(byParent, "missing"); ok {
		t.Error("FindByID(missing) should fail")
	}
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		parent *string
		want   models.ParentKey
	}{
		{nil, models.RootKey},
		{models.StringPtr(""), models.RootKey},
		{models.StringPtr("abc"), "abc"},
	}
	for _, tt := range tests {
		if got := models.KeyOf(tt.parent); got != tt.want {
			t.Errorf("KeyOf(%v) = %q, want %q", tt.parent, got, tt.want)
		}
	}
}
