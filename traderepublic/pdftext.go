package traderepublic

import (
	"bytes"
	"fmt"
	"strings"

	"rsc.io/pdf"
)

// ExtractText recovers the text layer of a statement document. Lines
// are reassembled from the positioned fragments: a baseline change
// starts a new line, a horizontal gap wider than a quarter of the font
// size becomes a space.
func ExtractText(raw []byte) (text string, err error) {
	// The decoder panics on some malformed documents instead of
	// returning an error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed statement document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		var lastY, lastEnd float64
		for _, t := range page.Content().Text {
			switch {
			case lastY == 0:
			case t.Y != lastY:
				b.WriteByte('\n')
			case t.X-lastEnd > t.FontSize/4:
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			lastY, lastEnd = t.Y, t.X+t.W
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
