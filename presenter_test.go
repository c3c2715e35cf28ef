package upchuk

import (
	"bytes"
	"testing"
)

func TestListAll(t *testing.T) {
	tag := "docs"
	var out bytes.Buffer
	ListAll(&out, []UrlRecord{
		{Url: "https://a.example", Tag: &tag, Date: "2025-04-19"},
		{Url: "https://b.example", Date: "2025-04-20"},
	})
	expected := "URL: https://a.example\nTag: docs\nDate: 2025-04-19\n---\n" +
		"URL: https://b.example\nDate: 2025-04-20\n---\n"
	if out.String() != expected {
		t.Fatalf("unexpected listing:\n%s", out.String())
	}
}

func TestListAll_Empty(t *testing.T) {
	var out bytes.Buffer
	ListAll(&out, nil)
	if out.String() != "No urls found\n" {
		t.Fatalf("unexpected listing %q", out.String())
	}
}
