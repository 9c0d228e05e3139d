package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cadueduardo/MAF/internal/domain"
	"github.com/cadueduardo/MAF/internal/sheet"
)

// webTextRecord is the canonical form written by the harvester. The
// page_content alias keeps older harvested archives loadable.
type webTextRecord struct {
	Text        string            `json:"text"`
	PageContent string            `json:"page_content"`
	Metadata    map[string]string `json:"metadata"`
}

// parseCrawledPage wraps pre-harvested web text into a sheet without
// re-parsing it. These sheets carry no product identity; they are flagged by
// an empty Product, never given a synthetic one.
func parseCrawledPage(path string) (*domain.Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec webTextRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode web text record: %w", err)
	}
	text := rec.Text
	if text == "" {
		text = rec.PageContent
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("web text record %s has no text", path)
	}
	source := rec.Metadata["source"]
	if source == "" {
		source = path
	}
	return &domain.Sheet{
		SourceID: source,
		Text:     sheet.Wrap(source, text),
	}, nil
}
