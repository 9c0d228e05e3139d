package normalize

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/cadueduardo/MAF/internal/domain"
	"github.com/cadueduardo/MAF/internal/sheet"
)

var (
	// Matches the line carrying the product identity, e.g. "Produto: ABC-100".
	productLineRe = regexp.MustCompile(`(?i)^\s*(?:produto|product)\s*:\s*(.+)$`)
	// A secondary "Label:" field appended to the product line, e.g.
	// "ABC-100  Cor: Preto" - everything from the label on is stripped.
	trailingLabelRe = regexp.MustCompile(`\s+[\p{L}][\p{L}\s/]*:\s`)
	// Table columns are separated by runs of two or more whitespace characters.
	columnSplitRe = regexp.MustCompile(`\s{2,}`)
)

// Table-header tokens that must not become property names. Comparison is
// case-insensitive on the whole column.
var headerTokens = map[string]struct{}{
	"method":          {},
	"metodo":          {},
	"método":          {},
	"unit":            {},
	"unidade":         {},
	"typical values":  {},
	"valores tipicos": {},
	"valores típicos": {},
	"property":        {},
	"propriedade":     {},
	"value":           {},
	"valor":           {},
}

// parseOfficeDocument normalizes a .docx technical data sheet.
func parseOfficeDocument(path string) (*domain.Sheet, error) {
	text, err := extractDocxText(path)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	product, props := classifyLines(text)
	if product == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrNoProductName)
	}
	return &domain.Sheet{
		SourceID:   path,
		Product:    product,
		Properties: props,
		Text:       sheet.Render(product, props),
	}, nil
}

// classifyLines scans extracted text line by line: the product line names the
// sheet, remaining lines are either "key: value" pairs or table rows with the
// property name in the first column and the remaining columns joined into its
// value. Recognized table-header lines are excluded.
func classifyLines(text string) (string, []domain.Property) {
	var (
		product string
		props   []domain.Property
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := productLineRe.FindStringSubmatch(line); m != nil {
			// Only the first product line names the sheet; repeats are
			// dropped so the rendered sheet keeps a single PRODUCT line.
			if product == "" {
				product = stripTrailingLabel(m[1])
			}
			continue
		}
		if isHeaderLine(line) {
			continue
		}
		cols := columnSplitRe.Split(line, -1)
		if len(cols) >= 2 {
			key := strings.TrimSuffix(strings.TrimSpace(cols[0]), ":")
			value := strings.TrimSpace(strings.Join(cols[1:], " "))
			if key != "" && value != "" {
				props = append(props, domain.Property{Key: key, Value: value})
			}
			continue
		}
		if key, value, ok := splitPair(line); ok {
			props = append(props, domain.Property{Key: key, Value: value})
		}
	}
	return product, props
}

// stripTrailingLabel removes a secondary field appended to the product line,
// e.g. "ABC-100 Cor: Preto" -> "ABC-100".
func stripTrailingLabel(name string) string {
	if loc := trailingLabelRe.FindStringIndex(name); loc != nil {
		name = name[:loc[0]]
	}
	return strings.TrimSpace(name)
}

func isHeaderLine(line string) bool {
	for _, col := range columnSplitRe.Split(line, -1) {
		col = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(col, ":")))
		if _, ok := headerTokens[col]; ok {
			return true
		}
	}
	return false
}

func splitPair(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

// docx files are zip archives; the document body lives in word/document.xml.
// The token walk below keeps just enough structure for the line classifier:
// paragraphs become lines, table cells are joined with a two-space column
// separator, table rows become lines. classifyLines splits columns on that
// two-space separator, so the extractor must guarantee it; generic docx text
// extractors do not.
func extractDocxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer archive.Close()

	for _, f := range archive.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		text, err := walkDocumentXML(rc)
		rc.Close()
		return text, err
	}
	return "", fmt.Errorf("word/document.xml not found in %s", path)
}

func walkDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b          strings.Builder
		tableDepth int
		cellOpen   bool
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tc":
				cellOpen = true
			case "t":
				inText = true
			case "tab":
				b.WriteString("  ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "tc":
				cellOpen = false
				b.WriteString("  ")
			case "t":
				inText = false
			case "tr":
				b.WriteByte('\n')
			case "p":
				if tableDepth == 0 {
					b.WriteByte('\n')
				} else if cellOpen {
					b.WriteByte(' ')
				}
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
