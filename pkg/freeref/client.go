// Package freeref searches free full-text repositories (Wikisource,
// Internet Archive) for reference copies of a passage. Network failures
// degrade to "no candidates" — lookup is best-effort by contract.
package freeref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Candidate is one ranked external reference hit.
type Candidate struct {
	Provider string         `json:"provider"`
	Title    string         `json:"title"`
	Locator  string         `json:"locator"`
	Snippet  string         `json:"snippet"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Searcher is the external-reference lookup collaborator.
type Searcher interface {
	Search(ctx context.Context, title, snippet string, limit int) []Candidate
}

// Client queries Wikisource and the Internet Archive advanced search APIs.
type Client struct {
	httpClient    *http.Client
	wikisourceURL string
	archiveURL    string
}

// New returns a Client with the given per-request timeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		wikisourceURL: "https://en.wikisource.org/w/api.php",
		archiveURL:    "https://archive.org/advancedsearch.php",
	}
}

// Search fans out to both providers and returns candidates sorted by snippet
// similarity, best first. Errors from either provider are logged and
// swallowed; the worst case is an empty result.
func (c *Client) Search(ctx context.Context, title, snippet string, limit int) []Candidate {
	if limit <= 0 {
		limit = 5
	}
	var all []Candidate
	all = append(all, c.searchWikisource(ctx, title, snippet, limit)...)
	all = append(all, c.searchArchive(ctx, title, snippet, limit)...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (c *Client) searchWikisource(ctx context.Context, title, snippet string, limit int) []Candidate {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {title + " " + truncate(snippet, 160)},
		"format":   {"json"},
		"utf8":     {"1"},
		"srlimit":  {fmt.Sprint(limit)},
	}
	payload := struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
				PageID  int    `json:"pageid"`
			} `json:"search"`
		} `json:"query"`
	}{}
	if !c.fetchJSON(ctx, c.wikisourceURL+"?"+params.Encode(), &payload) {
		return nil
	}

	var out []Candidate
	for _, item := range payload.Query.Search {
		pageTitle := strings.TrimSpace(item.Title)
		if pageTitle == "" {
			continue
		}
		clean := strings.NewReplacer(`<span class="searchmatch">`, "", "</span>", "").Replace(item.Snippet)
		out = append(out, Candidate{
			Provider: "wikisource",
			Title:    pageTitle,
			Locator:  "https://en.wikisource.org/wiki/" + strings.ReplaceAll(pageTitle, " ", "_"),
			Snippet:  clean,
			Score:    SnippetSimilarity(title+" "+snippet, pageTitle+" "+clean),
			Metadata: map[string]any{"pageid": item.PageID},
		})
	}
	return out
}

func (c *Client) searchArchive(ctx context.Context, title, snippet string, limit int) []Candidate {
	params := url.Values{
		"q":      {title},
		"fl[]":   {"identifier,title,description"},
		"rows":   {fmt.Sprint(limit)},
		"output": {"json"},
	}
	payload := struct {
		Response struct {
			Docs []struct {
				Identifier  string `json:"identifier"`
				Title       any    `json:"title"`
				Description any    `json:"description"`
			} `json:"docs"`
		} `json:"response"`
	}{}
	if !c.fetchJSON(ctx, c.archiveURL+"?"+params.Encode(), &payload) {
		return nil
	}

	var out []Candidate
	for _, doc := range payload.Response.Docs {
		if doc.Identifier == "" {
			continue
		}
		docTitle := flattenField(doc.Title)
		desc := flattenField(doc.Description)
		out = append(out, Candidate{
			Provider: "internet_archive",
			Title:    docTitle,
			Locator:  "https://archive.org/details/" + doc.Identifier,
			Snippet:  truncate(desc, 300),
			Score:    SnippetSimilarity(title+" "+snippet, docTitle+" "+desc),
			Metadata: map[string]any{"identifier": doc.Identifier},
		})
	}
	return out
}

func (c *Client) fetchJSON(ctx context.Context, rawURL string, dest any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", "curator/1.0")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		zap.L().Debug("freeref: request failed", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		zap.L().Debug("freeref: non-200 response", zap.String("url", rawURL), zap.Int("status", resp.StatusCode))
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(body, dest); err != nil {
		zap.L().Debug("freeref: bad response body", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	return true
}

// SnippetSimilarity scores how well a candidate matches the query text using
// token-set overlap over the first ~1200 characters of each side.
func SnippetSimilarity(query, target string) float64 {
	left := tokenSet(truncate(strings.ToLower(query), 1200))
	right := tokenSet(truncate(strings.ToLower(target), 1200))
	if len(left) == 0 || len(right) == 0 {
		return 0.0
	}
	overlap := 0
	for tok := range left {
		if right[tok] {
			overlap++
		}
	}
	union := len(left) + len(right) - overlap
	return float64(overlap) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, `.,:;!?()[]{}<>"'`)
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}

func flattenField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
