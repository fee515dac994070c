package naming

import "testing"

func TestTitleToName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello World", "Hello World"},
		{"...Hidden Title", "Hidden Title"},
		{"Ratio: 16/9 \\ widescreen", "Ratio- 16-9 - widescreen"},
		{"What?! Really?!", "What Really"},
		{"a     b", "a b"},
		{"  trim me  ", "trim me"},
		{"café naïve", "cafe naive"},
		{"!?|", NothingName},
		{"", NothingName},
	}

	for _, c := range cases {
		if got := TitleToName(c.in); got != c.want {
			t.Errorf("TitleToName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTitleToNameIdempotent(t *testing.T) {
	for _, s := range []string{"Hello World!", "...dots...", "a  b  c", "café"} {
		once := TitleToName(s)
		twice := TitleToName(once)
		if once != twice {
			t.Errorf("TitleToName not idempotent for %q: %q != %q", s, once, twice)
		}
	}
}

func TestAliasCoerce(t *testing.T) {
	good, err := AliasCoerce("MyAlias123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if good != "MyAlias123" {
		t.Fatalf("got %q", good)
	}

	if _, err := AliasCoerce("has a space"); err == nil {
		t.Fatalf("expected error for non-alphanumeric alias")
	}
	if _, err := AliasCoerce(""); err == nil {
		t.Fatalf("expected error for empty alias")
	}
}

func TestEffectiveName(t *testing.T) {
	if got := EffectiveName("Name", "Alias"); got != "Alias" {
		t.Fatalf("alias should win, got %q", got)
	}
	if got := EffectiveName("Name", ""); got != "Name" {
		t.Fatalf("name should win over TEMP, got %q", got)
	}
	if got := EffectiveName("", ""); got != TEMPName {
		t.Fatalf("expected TEMP fallback, got %q", got)
	}
}

func TestFormatVNames(t *testing.T) {
	dir, base := FormatVNames("/archive", "SomeChannel", "Video Title", "", "abc123", "mkv")
	if dir != "/archive/SomeChannel/a" || base != "Video Title-abc123.mkv" {
		t.Fatalf("got dir=%q base=%q", dir, base)
	}

	dir, base = FormatVNames("/archive", "SomeChannel", "Video Title", "Alias", "abc123", "")
	if dir != "/archive/SomeChannel/a" || base != "Alias-abc123" {
		t.Fatalf("alias override failed, got dir=%q base=%q", dir, base)
	}
}

func TestFormatVPath(t *testing.T) {
	got := FormatVPath("/archive", "SomeChannel", "Video Title", "", "Abc123", "mkv")
	want := "/archive/SomeChannel/A/Video Title-Abc123.mkv"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestShardDirEmpty(t *testing.T) {
	if got := ShardDir(""); got != "_" {
		t.Fatalf("got %q want _", got)
	}
}

func TestShardDirIsCaseSensitive(t *testing.T) {
	if got := ShardDir("Abc"); got != "A" {
		t.Fatalf("got %q want A", got)
	}
	if got := ShardDir("abc"); got != "a" {
		t.Fatalf("got %q want a", got)
	}
}
