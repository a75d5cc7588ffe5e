package reader

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     navLabel   `xml:"navLabel"`
	Content   navContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

const ncxMediaType = "application/x-dtbncx+xml"

// Outline reads the NCX table of contents of an EPUB. Books without one have
// no outline.
func (f *EPUBFormat) Outline(data []byte) ([]Heading, error) {
	rc, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}

	ncxData, err := readNCX(rc.Rootfiles[0])
	if err != nil || ncxData == nil {
		return nil, err
	}

	var toc ncx
	if err := xml.Unmarshal(ncxData, &toc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}
	return flattenNavPoints(toc.NavMap.NavPoints, 0), nil
}

func readNCX(book *epub.Rootfile) ([]byte, error) {
	for i := range book.Manifest.Items {
		item := &book.Manifest.Items[i]
		if item.MediaType != ncxMediaType && !strings.HasSuffix(strings.ToLower(item.HREF), ".ncx") {
			continue
		}
		r, err := item.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open NCX %s: %w", item.HREF, err)
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	return nil, nil
}

func flattenNavPoints(points []navPoint, level int) []Heading {
	var out []Heading
	for _, np := range points {
		if title := strings.TrimSpace(np.Label.Text); title != "" {
			out = append(out, Heading{Title: title, Level: level})
		}
		out = append(out, flattenNavPoints(np.Children, level+1)...)
	}
	return out
}
