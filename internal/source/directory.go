package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
)

// listingSelectors are tried in order against a directory results page.
// Directory markup changes without notice; the fallbacks cover the layout
// variants observed so far.
var listingSelectors = []string{
	"div.listing-item",
	"article.resultado",
	"div.company-card",
	"li.search-result",
}

// DirectoryAdapter scrapes a local business directory's search results.
type DirectoryAdapter struct {
	baseURL string
	http    *http.Client
	retry   resilience.Policy
	log     *zap.Logger
}

// NewDirectoryAdapter creates the directory scraper against the given
// base URL.
func NewDirectoryAdapter(baseURL string) *DirectoryAdapter {
	retry := resilience.DefaultPolicy()
	retry.OnRetry = resilience.LogRetries(string(model.SourceDirectory), "scrape")
	return &DirectoryAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 20 * time.Second},
		retry:   retry,
		log:     zap.L().With(zap.String("source", string(model.SourceDirectory))),
	}
}

func (a *DirectoryAdapter) ID() model.SourceID { return model.SourceDirectory }

func (a *DirectoryAdapter) Search(ctx context.Context, q Query) ([]model.RawRecord, error) {
	searchURL := fmt.Sprintf("%s/busca?q=%s&onde=%s",
		a.baseURL, url.QueryEscape(q.Keyword), url.QueryEscape(q.Region))

	doc, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (*goquery.Document, error) {
		return a.fetch(ctx, searchURL)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if resilience.IsTransient(err) {
			return nil, eris.Wrap(ErrUnavailable, err.Error())
		}
		return nil, err
	}

	records := a.extract(doc)
	if len(records) == 0 && looksLikeResultsPage(doc) {
		// The page rendered but none of the known layouts matched.
		return nil, eris.Wrap(ErrParseFailure, "directory: no listing selector matched")
	}

	a.log.Debug("directory scrape complete",
		zap.String("url", searchURL),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// fetch performs one GET and parses the page. Network failures and
// retryable statuses are marked transient so the retry policy picks them
// up; 429 maps straight to ErrThrottled because pacing belongs to the
// orchestrator's limiter, not the retry loop.
func (a *DirectoryAdapter) fetch(ctx context.Context, searchURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "directory: create request")
	}
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")

	resp, err := a.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.Transient(eris.Wrap(err, "directory: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, eris.Wrap(ErrThrottled, fmt.Sprintf("directory: status %d", resp.StatusCode))
	case resilience.RetryableStatus(resp.StatusCode):
		return nil, resilience.Transient(eris.Errorf("directory: status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, eris.Wrap(ErrUnavailable, fmt.Sprintf("directory: status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(ErrParseFailure, err.Error())
	}
	return doc, nil
}

func (a *DirectoryAdapter) extract(doc *goquery.Document) []model.RawRecord {
	var records []model.RawRecord
	for _, selector := range listingSelectors {
		doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
			rec := model.RawRecord{
				Name:    cleanText(item.Find("h2, h3, .name, .listing-name").First().Text()),
				Address: cleanText(item.Find(".address, .endereco, address").First().Text()),
				Phone:   cleanText(item.Find(".phone, .telefone, a[href^='tel:']").First().Text()),
				Snippet: cleanText(item.Find(".description, .descricao, p").First().Text()),
			}
			if href, ok := item.Find("a.website, a.site, a[rel='nofollow external']").First().Attr("href"); ok {
				rec.Website = strings.TrimSpace(href)
			}
			if rec.Name != "" {
				records = append(records, rec)
			}
		})
		if len(records) > 0 {
			break
		}
	}
	return records
}

// looksLikeResultsPage distinguishes a parse failure from a genuinely
// empty result. An empty-results page carries its own marker; a page with
// neither marker nor listings means the layout changed under us.
func looksLikeResultsPage(doc *goquery.Document) bool {
	if doc.Find(".no-results, .sem-resultados, .empty-state").Length() > 0 {
		return false
	}
	return true
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
