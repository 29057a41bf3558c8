package fetch

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/mkurosawa/kaiji/internal/database"
)

// Excerpts are display snippets, not archives; cap what we store.
const maxExcerptLen = 1000

// Result holds the results of an excerpt fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// ExcerptFetcher backfills missing excerpts by fetching the disclosure
// page and extracting readable text.
type ExcerptFetcher struct {
	db     *database.DB
	client *http.Client
}

// NewExcerptFetcher creates a new excerpt fetcher.
func NewExcerptFetcher(db *database.DB, timeout time.Duration) *ExcerptFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ExcerptFetcher{
		db: db,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingExcerpts fetches excerpts for records that have none.
// A domain that fails once is skipped for the rest of the run.
func (f *ExcerptFetcher) FetchMissingExcerpts(periodID string) *Result {
	records, err := f.db.GetRecordsNeedingExcerpt(periodID)
	if err != nil {
		log.Printf("Error getting records needing excerpts: %v", err)
		return &Result{}
	}

	if len(records) == 0 {
		log.Println("No records need excerpt fetching")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, rec := range records {
		u, _ := url.Parse(rec.URL)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			f.db.MarkExcerptAttempted(rec.ID)
			result.Failed++
			continue
		}

		excerpt, httpErr := f.fetchExcerpt(rec.URL)
		if httpErr != nil {
			f.db.MarkExcerptAttempted(rec.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", rec.URL, domain)
			continue
		}

		if excerpt != "" {
			f.db.UpdateRecordExcerpt(rec.ID, excerpt)
			result.Fetched++
			log.Printf("Fetched excerpt for: %s", rec.Title)
		} else {
			f.db.MarkExcerptAttempted(rec.ID)
			result.Failed++
			log.Printf("No extractable text from: %s", rec.URL)
		}
	}

	log.Printf("Excerpt fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

func (f *ExcerptFetcher) fetchExcerpt(recordURL string) (string, error) {
	req, err := http.NewRequest("GET", recordURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "kaiji/1.0 (disclosure aggregator)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(recordURL)
	page, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(page.TextContent)
	if len(text) < 50 {
		return "", nil
	}
	runes := []rune(text)
	if len(runes) > maxExcerptLen {
		text = string(runes[:maxExcerptLen])
	}
	return text, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
