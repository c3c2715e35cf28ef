package upchuk

import (
	"fmt"
	"io"
)

// ListAll prints records in store order.
func ListAll(w io.Writer, records []UrlRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "No urls found")
		return
	}
	for _, rec := range records {
		_, _ = fmt.Fprintf(w, "URL: %s\n", rec.Url)
		if rec.Tag != nil {
			_, _ = fmt.Fprintf(w, "Tag: %s\n", *rec.Tag)
		}
		_, _ = fmt.Fprintf(w, "Date: %s\n", rec.Date)
		_, _ = fmt.Fprintln(w, "---")
	}
}
