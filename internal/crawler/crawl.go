// Package crawler harvests a product website into plain-text page records
// that the normalization layer picks up alongside structured data sheets.
package crawler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	defaultMaxPages = 100
	fetchTimeout    = 30 * time.Second
	politeDelay     = 200 * time.Millisecond
	pageFilePerm    = 0o644
)

// Crawler walks one site breadth-first, staying on the root host, and
// writes each page as a JSON record into the output directory.
type Crawler struct {
	client   *http.Client
	maxPages int
	log      *zap.SugaredLogger
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithMaxPages bounds how many pages one run may fetch.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithHTTPClient swaps the HTTP client, mostly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) {
		c.client = client
	}
}

// New creates a Crawler.
func New(log *zap.SugaredLogger, opts ...Option) *Crawler {
	c := &Crawler{
		client:   &http.Client{Timeout: fetchTimeout},
		maxPages: defaultMaxPages,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pageRecord struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Run crawls rootURL and writes page records into outputDir. It returns
// the number of pages written.
func (c *Crawler) Run(ctx context.Context, rootURL, outputDir string) (int, error) {
	root, err := url.Parse(rootURL)
	if err != nil {
		return 0, fmt.Errorf("parse root url: %w", err)
	}
	if root.Scheme != "http" && root.Scheme != "https" {
		return 0, fmt.Errorf("unsupported scheme %q", root.Scheme)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	visited := map[string]bool{}
	queue := []string{canonical(root)}
	written := 0

	for len(queue) > 0 && len(visited) < c.maxPages {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		pageURL := queue[0]
		queue = queue[1:]
		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true

		text, title, links, err := c.fetch(ctx, pageURL)
		if err != nil {
			c.log.Warnw("skipping page", "url", pageURL, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			if err := writePage(outputDir, pageURL, title, text); err != nil {
				return written, err
			}
			written++
		}

		for _, link := range links {
			next, ok := resolveLink(root, pageURL, link)
			if ok && !visited[next] {
				queue = append(queue, next)
			}
		}
		time.Sleep(politeDelay)
	}

	c.log.Infow("crawl finished", "pages", written, "visited", len(visited))
	return written, nil
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (text, title string, links []string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		return "", "", nil, fmt.Errorf("content type %q", ct)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", "", nil, err
	}
	text, title = extractText(doc)
	links = extractLinks(doc)
	return text, title, links, nil
}

// skippedElements hold navigation chrome and code, not product content.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"aside":    true,
	"form":     true,
	"noscript": true,
}

func extractText(doc *html.Node) (text, title string) {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return b.String(), title
}

func extractLinks(doc *html.Node) []string {
	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					links = append(links, attr.Val)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links
}

// resolveLink decides whether a href belongs to this crawl. Off-host links,
// anchors, non-web schemes and translated page variants are dropped.
func resolveLink(root *url.URL, baseURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if resolved.Host != root.Host {
		return "", false
	}
	lang := resolved.Query().Get("lang")
	if lang == "en" || lang == "es" {
		return "", false
	}
	return canonical(resolved), true
}

func canonical(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	if clone.Path == "" {
		clone.Path = "/"
	}
	return clone.String()
}

func writePage(outputDir, pageURL, title, text string) error {
	record := pageRecord{
		Text: text,
		Metadata: map[string]string{
			"source": pageURL,
			"title":  title,
		},
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	sum := sha1.Sum([]byte(pageURL))
	name := "page_" + hex.EncodeToString(sum[:8]) + ".json"
	return os.WriteFile(filepath.Join(outputDir, name), data, pageFilePerm)
}
