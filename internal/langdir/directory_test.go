package langdir

import (
	"sort"
	"testing"
)

func TestDefaultDirectory(t *testing.T) {
	d := Default()
	if d.Len() < 60 {
		t.Fatalf("expected the full chooser table, got %d entries", d.Len())
	}
	cases := []struct {
		code string
		name string
		ok   bool
	}{
		{"en", "English", true},
		{"EN", "English", true},
		{"fr", "French", true},
		{"zh-CN", "Chinese (Simplified)", true},
		{"zh-cn", "Chinese (Simplified)", true},
		{"zh-TW", "Chinese (Traditional)", true},
		{"ceb", "Cebuano", true},
		{"tlh", "", false},
		{"", "", false},
		{"not a code", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			name, ok := d.Name(tc.code)
			if ok != tc.ok || name != tc.name {
				t.Fatalf("Name(%q) = %q, %v; want %q, %v", tc.code, name, ok, tc.name, tc.ok)
			}
			if d.Supported(tc.code) != tc.ok {
				t.Fatalf("Supported(%q) mismatch", tc.code)
			}
		})
	}
}

func TestAllSortedCopy(t *testing.T) {
	d := Default()
	all := d.All()
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].Code < all[j].Code }) {
		t.Fatal("All must be sorted by code")
	}
	all[0].Name = "mutated"
	if d.All()[0].Name == "mutated" {
		t.Fatal("All must return a copy")
	}
}

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"en":    "en",
		"EN":    "en",
		"zh-cn": "zh-CN",
		"pt-br": "pt-BR",
		"$$$":   "$$$",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeKeepsClientCode(t *testing.T) {
	d := Default()
	cases := map[string]string{
		"en":     "en",
		" FR ":   "fr",
		"zh-cn":  "zh-CN",
		"fil":    "fil",
		"iw":     "iw",
		"tl":     "tl",
		"jw":     "jw",
		"xx-YY":  "xx-YY",
		"pt-BR ": "pt-BR",
	}
	for in, want := range cases {
		if got := d.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
	if name, ok := d.Name("iw"); !ok || name != "Hebrew" {
		t.Errorf("deprecated alias must still resolve for lookup, got %q, %v", name, ok)
	}
}

func TestParseKeepsListedSpelling(t *testing.T) {
	d, err := Parse([]byte("languages:\n  - {code: zh-cn, name: Chinese}\n  - {code: en, name: English}"))
	if err != nil {
		t.Fatal(err)
	}
	if all := d.All(); all[0].Code != "en" || all[1].Code != "zh-cn" {
		t.Fatalf("unexpected codes %+v", all)
	}
	if !d.Supported("zh-CN") {
		t.Fatal("lookup must go through canonical form")
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":     "languages: []",
		"no name":   "languages:\n  - {code: en}",
		"duplicate": "languages:\n  - {code: en, name: English}\n  - {code: EN, name: English}",
		"not yaml":  "languages: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
