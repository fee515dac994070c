package siteurl

import "testing"

func TestParseWatch(t *testing.T) {
	p, err := Parse("https://www.example-video-site.com/watch?v=btZ-VFW4wpY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kind != KindWatch || p.Key != "btZ-VFW4wpY" {
		t.Fatalf("got %+v", p)
	}
}

func TestParsePlaylist(t *testing.T) {
	p, err := Parse("https://www.example-video-site.com/playlist?list=PL123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kind != KindPlaylist || p.Key != "PL123" {
		t.Fatalf("got %+v", p)
	}
}

func TestParseUserAndChannelShapes(t *testing.T) {
	cases := []struct {
		url      string
		wantKind Kind
		wantKey  string
		unnamed  bool
	}{
		{"https://www.example-video-site.com/user/SomeUser", KindUser, "SomeUser", false},
		{"https://www.example-video-site.com/c/SomeHandle", KindChannel, "SomeHandle", false},
		{"https://www.example-video-site.com/c/SomeHandle/videos", KindChannel, "SomeHandle", false},
		{"https://www.example-video-site.com/channel/UC1234", KindChannel, "UC1234", true},
	}
	for _, c := range cases {
		p, err := Parse(c.url)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.url, err)
		}
		if p.Kind != c.wantKind || p.Key != c.wantKey || p.Unnamed != c.unnamed {
			t.Errorf("%s: got %+v", c.url, p)
		}
	}
}

func TestParseRejectsDisallowedScheme(t *testing.T) {
	if _, err := Parse("http://www.example-video-site.com/watch?v=x"); err == nil {
		t.Fatalf("expected error for non-https scheme")
	}
}

func TestParseRejectsDisallowedHost(t *testing.T) {
	if _, err := Parse("https://evil.example.com/watch?v=x"); err == nil {
		t.Fatalf("expected error for disallowed host")
	}
}

func TestParseRejectsUnknownPath(t *testing.T) {
	if _, err := Parse("https://www.example-video-site.com/about"); err == nil {
		t.Fatalf("expected error for unrecognized path")
	}
}
