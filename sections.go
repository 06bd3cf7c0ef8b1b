package trexport

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Section names that have stayed stable across feed versions.
const (
	SectionTransaction = "Transaction"
	SectionOverview    = "Overview"
)

// Section is one named, typed group of detail rows attached to a
// transaction. Sections are not self-describing beyond their title and
// type discriminator; callers locate the one they need by title.
type Section interface {
	// SectionType returns the wire discriminator ("header", "table",
	// "documents").
	SectionType() string
	// Title returns the section's display title.
	Title() string
}

// HeaderSection is the detail header. Its icon path encodes the
// instrument identifier for record kinds whose own top-level icon is
// generic (stock gifts).
type HeaderSection struct {
	SectionTitle string `json:"title"`
	Data         struct {
		Icon      string `json:"icon"`
		Timestamp string `json:"timestamp,omitempty"`
		Status    string `json:"status,omitempty"`
	} `json:"data"`
}

func (s *HeaderSection) SectionType() string { return "header" }
func (s *HeaderSection) Title() string       { return s.SectionTitle }

// Instrument extracts the instrument identifier from the header icon.
// Absence is an error, never an empty identifier.
func (s *HeaderSection) Instrument() (string, error) {
	if s.Data.Icon == "" {
		return "", fmt.Errorf("header section %q has no icon", s.SectionTitle)
	}
	return InstrumentFromIcon(s.Data.Icon)
}

// TableSection is an ordered list of named sub-rows.
type TableSection struct {
	SectionTitle string     `json:"title"`
	Rows         []TableRow `json:"data"`
}

func (s *TableSection) SectionType() string { return "table" }
func (s *TableSection) Title() string       { return s.SectionTitle }

// Row returns the first sub-row with the given title, or nil.
func (s *TableSection) Row(title string) *TableRow {
	for i := range s.Rows {
		if s.Rows[i].Title == title {
			return &s.Rows[i]
		}
	}
	return nil
}

// TableRow is one named sub-row of a table section, carrying a display
// value and/or raw text.
type TableRow struct {
	Title  string    `json:"title"`
	Detail RowDetail `json:"detail"`
}

// RowDetail is the value payload of a table row. Newer feed versions
// carry a pre-formatted display value, older ones only raw text.
type RowDetail struct {
	Text    string        `json:"text,omitempty"`
	Display *DisplayValue `json:"displayValue,omitempty"`
}

// DisplayValue is the pre-formatted rendering of a row value. Prefix
// carries a leading fragment (the legacy "Transaction" row encodes the
// share quantity there).
type DisplayValue struct {
	Prefix string `json:"prefix,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Text returns the row's display text, falling back to its raw text.
// A nil row yields the empty string so callers can chain directly into
// ParseAmount.
func (r *TableRow) Text() string {
	if r == nil {
		return ""
	}
	if r.Detail.Display != nil && r.Detail.Display.Text != "" {
		return r.Detail.Display.Text
	}
	return r.Detail.Text
}

// Prefix returns the display value's prefix fragment, or empty.
func (r *TableRow) Prefix() string {
	if r == nil || r.Detail.Display == nil {
		return ""
	}
	return r.Detail.Display.Prefix
}

// DocumentsSection lists downloadable document references (invoices,
// dividend statements).
type DocumentsSection struct {
	SectionTitle string        `json:"title"`
	Documents    []DocumentRef `json:"data"`
}

func (s *DocumentsSection) SectionType() string { return "documents" }
func (s *DocumentsSection) Title() string       { return s.SectionTitle }

// DocumentRef points at one downloadable document.
type DocumentRef struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Action struct {
		Type    string `json:"type"`
		Payload string `json:"payload"`
	} `json:"action"`
}

// DecodeSections decodes the polymorphic sections array of a detail
// payload, dispatching on each element's "type" discriminator. Unknown
// section types are kept as opaque entries rather than rejected, since
// the upstream API grows new ones without notice.
func DecodeSections(data json.RawMessage) ([]Section, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("sections are not a JSON array: %w", err)
	}
	sections := make([]Section, 0, len(raws))
	for _, raw := range raws {
		var discriminator struct {
			Type  string `json:"type"`
			Title string `json:"title"`
		}
		if err := json.Unmarshal(raw, &discriminator); err != nil {
			return nil, fmt.Errorf("section without type discriminator: %w", err)
		}
		var section Section
		switch discriminator.Type {
		case "header":
			section = new(HeaderSection)
		case "table", "horizontalTable":
			section = new(TableSection)
		case "documents":
			section = new(DocumentsSection)
		default:
			sections = append(sections, &opaqueSection{
				kind:  discriminator.Type,
				title: discriminator.Title,
				raw:   append(json.RawMessage(nil), raw...),
			})
			continue
		}
		if err := json.Unmarshal(raw, section); err != nil {
			return nil, fmt.Errorf("malformed %q section: %w", discriminator.Type, err)
		}
		sections = append(sections, section)
	}
	return sections, nil
}

// opaqueSection preserves a section of a type this version does not
// understand, so persisted transactions stay lossless.
type opaqueSection struct {
	kind  string
	title string
	raw   json.RawMessage
}

func (s *opaqueSection) SectionType() string { return s.kind }
func (s *opaqueSection) Title() string       { return s.title }

func (s *opaqueSection) MarshalJSON() ([]byte, error) { return s.raw, nil }

// EncodeSections re-encodes decoded sections with their wire
// discriminator so a persisted transaction can be decoded again.
func EncodeSections(sections []Section) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(sections))
	for _, s := range sections {
		// opaque sections already carry their discriminator
		if o, ok := s.(*opaqueSection); ok {
			out = append(out, o.raw)
			continue
		}
		var w jsonObjectWriter
		w.Append("type", s.SectionType())
		w.EmbedFrom(s)
		b, err := w.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}

// FindTable returns the first table section with the given title, or nil.
func FindTable(sections []Section, title string) *TableSection {
	for _, s := range sections {
		if t, ok := s.(*TableSection); ok && t.SectionTitle == title {
			return t
		}
	}
	return nil
}

// FindHeader returns the first header section, or nil.
func FindHeader(sections []Section) *HeaderSection {
	for _, s := range sections {
		if h, ok := s.(*HeaderSection); ok {
			return h
		}
	}
	return nil
}

// FindDocuments returns the first documents section, or nil.
func FindDocuments(sections []Section) *DocumentsSection {
	for _, s := range sections {
		if d, ok := s.(*DocumentsSection); ok {
			return d
		}
	}
	return nil
}

// InstrumentFromIcon extracts the instrument identifier (ISIN) from an
// icon path such as "logos/IE00B4L5Y983/v2". A path that does not carry
// an identifier is an error; an empty identifier is never substituted.
func InstrumentFromIcon(icon string) (string, error) {
	parts := strings.Split(icon, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("icon %q does not encode an instrument identifier", icon)
	}
	return parts[1], nil
}

// InstrumentFromHeader extracts the instrument identifier from the
// header section's icon. Used for record kinds whose top-level icon is
// generic.
func InstrumentFromHeader(sections []Section) (string, error) {
	header := FindHeader(sections)
	if header == nil {
		return "", fmt.Errorf("no header section present")
	}
	return header.Instrument()
}
