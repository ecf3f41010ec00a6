package tabular

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"eduetl/internal/config"
	"eduetl/internal/record"

	"github.com/PuerkitoBio/goquery"
)

// HTMLField extracts one record field from each record element.
type HTMLField struct {
	Name     string
	Selector string // relative to the record element; "" means the element itself
	Extract  string // "text" or "attr"
	Attr     string
	Match    string // optional regex; group 1 (or the whole match) is kept
}

// HTMLListing describes how to turn an HTML page into records.
type HTMLListing struct {
	RecordSelector string
	Fields         []HTMLField
}

// DefaultHTMLListing reads the link tables exported by the content admin: one
// <tr> per video, the id in the first cell and the URL in the first link.
func DefaultHTMLListing() HTMLListing {
	return HTMLListing{
		RecordSelector: "tr",
		Fields: []HTMLField{
			{Name: "id", Selector: "td:first-child", Extract: "text"},
			{Name: "video_url", Selector: "a[href]", Extract: "attr", Attr: "href"},
		},
	}
}

// HTMLListingFromOptions overrides the default listing with html_record,
// html_id and html_url (selectors; html_url reads the href attribute).
func HTMLListingFromOptions(opt config.Options) HTMLListing {
	l := DefaultHTMLListing()
	l.RecordSelector = opt.String("html_record", l.RecordSelector)
	l.Fields[0].Selector = opt.String("html_id", l.Fields[0].Selector)
	l.Fields[1].Selector = opt.String("html_url", l.Fields[1].Selector)
	return l
}

// ReadHTML extracts one record per element matching l.RecordSelector, in
// document order. Elements that yield no field at all (header rows, layout
// rows) are skipped. Each record gets FieldRow set to its 1-based position
// among all matched elements plus one, mirroring spreadsheet numbering.
//
// Errors:
//   - a malformed document or an invalid Match regex.
func ReadHTML(r io.Reader, l HTMLListing) ([]record.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := make([]*regexp.Regexp, len(l.Fields))
	for i, f := range l.Fields {
		if strings.TrimSpace(f.Match) == "" {
			continue
		}
		if res[i], err = regexp.Compile(f.Match); err != nil {
			return nil, fmt.Errorf("invalid regex for field %q: %w", f.Name, err)
		}
	}

	var out []record.Record
	doc.Find(l.RecordSelector).Each(func(i int, el *goquery.Selection) {
		rec := record.Record{}
		for fi, f := range l.Fields {
			sel := el
			if f.Selector != "" {
				sel = el.Find(f.Selector).First()
			}
			if sel.Length() == 0 {
				continue
			}
			if v := filter(extract(sel, f), res[fi]); v != "" {
				rec[f.Name] = v
			}
		}
		if len(rec) == 0 {
			return
		}
		rec[FieldRow] = i + 2
		out = append(out, rec)
	})
	return out, nil
}

func extract(sel *goquery.Selection, f HTMLField) string {
	switch f.Extract {
	case "text", "":
		return strings.TrimSpace(sel.Text())
	case "attr":
		if v, ok := sel.Attr(f.Attr); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func filter(v string, re *regexp.Regexp) string {
	if v == "" || re == nil {
		return v
	}
	sm := re.FindStringSubmatch(v)
	switch len(sm) {
	case 0:
		return ""
	case 1:
		return sm[0]
	default:
		return sm[1]
	}
}
