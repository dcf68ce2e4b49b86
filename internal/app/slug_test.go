package app

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Home & Garden", "home-garden"},
		{"Electronics", "electronics"},
		{"  Spaced   Out  ", "spaced-out"},
		{"Already-Slugged", "already-slugged"},
		{"100% Cotton!!", "100-cotton"},
		{"___", ""},
	}
	for _, c := range cases {
		if got := Slugify(c.name); got != c.want {
			t.Fatalf("Slugify(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}
