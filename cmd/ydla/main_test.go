package main

import "testing"

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Errorf("splitCSV(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("splitCSV(%q) = %v, want %v", c.in, got, c.want)
				break
			}
		}
	}
}

func TestSplitKV(t *testing.T) {
	k, v, err := splitKV("aaaaaaaaaaa=My Custom Name")
	if err != nil {
		t.Fatalf("splitKV: %v", err)
	}
	if k != "aaaaaaaaaaa" || v != "My Custom Name" {
		t.Errorf("splitKV = (%q, %q)", k, v)
	}
}

func TestSplitKVRejectsMissingEquals(t *testing.T) {
	if _, _, err := splitKV("no-equals-here"); err == nil {
		t.Fatalf("expected error for missing '='")
	}
}

func TestSplitKVRejectsEmptyKey(t *testing.T) {
	if _, _, err := splitKV("=value"); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
