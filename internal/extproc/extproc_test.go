package extproc

import (
	"bytes"
	"testing"
)

func TestParseNDJSON(t *testing.T) {
	data := []byte("{\"id\":\"a\"}\n\n{\"id\":\"b\"}\n")
	recs, err := parseNDJSON(data)
	if err != nil {
		t.Fatalf("parseNDJSON: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["id"] != "a" || recs[1]["id"] != "b" {
		t.Fatalf("got %+v", recs)
	}
}

func TestParseNDJSONRejectsMalformedLine(t *testing.T) {
	_, err := parseNDJSON(bytes.NewBufferString("not json\n").Bytes())
	if err == nil {
		t.Fatalf("expected error for malformed line")
	}
}

func TestParseNDJSONEmpty(t *testing.T) {
	recs, err := parseNDJSON([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %+v", recs)
	}
}
