package upchuk

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestFileBackend_AppendFormat(t *testing.T) {
	bk := createFileBk(t)
	tag := "news"
	if err := bk.Append(&UrlRecord{Url: "https://a.example", Date: "2025-04-19"}); err != nil {
		t.Fatal(err)
	}
	if err := bk.Append(&UrlRecord{Url: "https://b.example", Tag: &tag, Date: "2025-04-20"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(bk.Path())
	if err != nil {
		t.Fatal(err)
	}
	expected := `{"url":"https://a.example","tag":null,"date":"2025-04-19"}` + "\n" +
		`{"url":"https://b.example","tag":"news","date":"2025-04-20"}` + "\n"
	if string(data) != expected {
		t.Fatalf("unexpected store content:\n%s", data)
	}
}

func TestFileBackend_AppendKeepsExisting(t *testing.T) {
	bk := createFileBk(t)
	existing := "garbage that is kept\n"
	if err := os.WriteFile(bk.Path(), []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}
	if err := bk.Append(&UrlRecord{Url: "https://a.example", Date: "2025-04-19"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(bk.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), existing) {
		t.Fatal("append should not touch existing content")
	}
	report, err := bk.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Records) != 1 || len(report.Skipped) != 1 {
		t.Fatalf("expected 1 record and 1 skipped line, got %+v", report)
	}
	if !errors.Is(report.Skipped[0].Err, ErrMalformedRecord) || report.Skipped[0].Line != 1 {
		t.Fatalf("unexpected skipped line %+v", report.Skipped[0])
	}
}

func TestFileBackend_ReadCreates(t *testing.T) {
	bk := createFileBk(t)
	report, err := bk.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if !report.Created || len(report.Records) != 0 {
		t.Fatalf("first read should create an empty store, got %+v", report)
	}
	if _, err = os.Stat(bk.Path()); err != nil {
		t.Fatal("store file should exist.", err)
	}
	report, err = bk.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if report.Created {
		t.Fatal("second read should not report creation")
	}
}

func TestFileBackend_BlankLines(t *testing.T) {
	bk := createFileBk(t)
	content := "\n" + `{"url":"https://a.example","tag":null,"date":"2025-04-19"}` + "\n\n"
	if err := os.WriteFile(bk.Path(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	report, err := bk.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Records) != 1 || len(report.Skipped) != 0 {
		t.Fatalf("blank lines should be ignored, got %+v", report)
	}
}

func TestFileBackend_LongLine(t *testing.T) {
	bk := createFileBk(t)
	content := `{"url":"https://a.example","tag":null,"date":"2025-04-19"}` + "\n" +
		strings.Repeat("x", 2*1024*1024) + "\n" +
		`{"url":"https://b.example","tag":null,"date":"2025-04-19"}`
	if err := os.WriteFile(bk.Path(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	report, err := bk.ReadAll()
	if err != nil {
		t.Fatal("a long line should not fail the read.", err)
	}
	if len(report.Records) != 2 || len(report.Skipped) != 1 {
		t.Fatalf("expected 2 records and 1 skipped line, got %d and %d", len(report.Records), len(report.Skipped))
	}
	if report.Skipped[0].Line != 2 || report.Records[1].Url != "https://b.example" {
		t.Fatal("reading should carry on past the long line")
	}
}

func TestFileBackend_NullFields(t *testing.T) {
	bk := createFileBk(t)
	content := `{"url":null,"tag":null,"date":null}` + "\n" +
		`{"url":"","tag":null,"date":"2025-04-19"}` + "\n" +
		`{"url":"https://a.example","tag":null,"date":null}` + "\n"
	if err := os.WriteFile(bk.Path(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	report, err := bk.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Records) != 0 || len(report.Skipped) != 3 {
		t.Fatalf("null or empty url and date should be skipped, got %+v", report.Records)
	}
	for _, s := range report.Skipped {
		if !errors.Is(s.Err, ErrMalformedRecord) {
			t.Fatalf("line %d should be malformed, got %v", s.Line, s.Err)
		}
	}
}

func TestFileBackend_Stamp(t *testing.T) {
	bk := createFileBk(t)
	before, err := bk.Stamp()
	if err != nil {
		t.Fatal(err)
	}
	if err = bk.Append(&UrlRecord{Url: "https://a.example", Date: "2025-04-19"}); err != nil {
		t.Fatal(err)
	}
	after, err := bk.Stamp()
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Fatal("stamp should change after an append")
	}
}
