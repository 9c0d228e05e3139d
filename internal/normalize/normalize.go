// Package normalize converts heterogeneous product documents into canonical
// technical data sheets. Each supported source format has its own parse
// function, registered in a lookup table keyed by format tag. A source file
// yields exactly one sheet or none: files whose product identity cannot be
// determined are skipped with a diagnostic, never given a placeholder name.
package normalize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cadueduardo/MAF/internal/domain"
)

// Format tags a source document with the parser that understands it.
type Format string

const (
	// FormatRecord is a structured key/value record (JSON).
	FormatRecord Format = "record"
	// FormatOfficeDocument is a semi-structured office document (.docx).
	FormatOfficeDocument Format = "office-document"
	// FormatCrawledPage is pre-harvested web text in canonical record form.
	FormatCrawledPage Format = "crawled-page"
)

// ErrNoProductName reports a document with no determinable product identity.
var ErrNoProductName = errors.New("no product name found")

type parseFunc func(path string) (*domain.Sheet, error)

var parsers = map[Format]parseFunc{
	FormatRecord:         parseRecord,
	FormatOfficeDocument: parseOfficeDocument,
	FormatCrawledPage:    parseCrawledPage,
}

// Subdirectories of the data root, one per source format.
var sourceDirs = []struct {
	dir    string
	format Format
	exts   []string
}{
	{"json", FormatRecord, []string{".json"}},
	{"dts", FormatOfficeDocument, []string{".docx"}},
	{"webtext", FormatCrawledPage, []string{".json"}},
}

// Loader walks a data root directory and normalizes every supported file.
type Loader struct {
	log *zap.SugaredLogger
}

// NewLoader creates a Loader reporting diagnostics through log.
func NewLoader(log *zap.SugaredLogger) *Loader {
	return &Loader{log: log}
}

// LoadDir normalizes every supported file under root. Source directory names
// are matched case-insensitively (exported data roots use DTS/ as often as
// dts/). Files are visited in lexicographic order so that repeated runs over
// an unchanged directory yield identical sheets in identical order. A single
// malformed file is skipped with a diagnostic and never aborts the batch.
func (l *Loader) LoadDir(root string) ([]domain.Sheet, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read data root %s: %w", root, err)
	}
	var sheets []domain.Sheet
	seenAny := false
	for _, src := range sourceDirs {
		name, ok := matchDir(entries, src.dir)
		if !ok {
			continue
		}
		seenAny = true
		dir := filepath.Join(root, name)
		files, err := listFiles(dir, src.exts)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, path := range files {
			s, err := ParseFile(src.format, path)
			if err != nil {
				l.log.Warnw("skipping document", "path", path, "format", src.format, "error", err)
				continue
			}
			sheets = append(sheets, *s)
		}
	}
	if !seenAny {
		return nil, fmt.Errorf("no source directories found under %s", root)
	}
	l.log.Infow("normalized documents", "sheets", len(sheets))
	return sheets, nil
}

func matchDir(entries []os.DirEntry, name string) (string, bool) {
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), name) {
			return e.Name(), true
		}
	}
	return "", false
}

// ParseFile normalizes a single file using the parser registered for format.
func ParseFile(format Format, path string) (*domain.Sheet, error) {
	parse, ok := parsers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return parse(path)
}

func listFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, name))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
