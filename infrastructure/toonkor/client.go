// Package toonkor talks to a toonkor mirror: it scrapes the page image
// list out of a chapter page and maintains the on-disk media library the
// translation GUI reads from.
package toonkor

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"

	"tkcollect/infrastructure/fileutil"
	"tkcollect/logging"
)

const (
	rawDir        = "raw"
	translatedDir = "translated"

	// Mirror pages are heavy; retries cover the mirror's habit of dropping
	// the first request under load.
	fetchAttempts = 3
	fetchDelay    = 2 * time.Second
)

// Chapter pages hide the real image list in a base64 blob assigned to
// toon_img inside an inline script.
var toonImgPattern = regexp.MustCompile(`toon_img\s*=\s*'([^']+)'`)

// Client fetches chapter pages from a toonkor mirror and downloads their
// images into the media library. It implements contracts.Downloader.
type Client struct {
	baseURL  string
	mediaDir string
	http     *http.Client
	logger   *logging.Logger
}

func NewClient(baseURL, mediaDir string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		mediaDir: mediaDir,
		http:     &http.Client{Timeout: 60 * time.Second},
		logger:   logging.Default().WithComponent("toonkor_client"),
	}
}

// Download scrapes the chapter's image list and stores every page under the
// chapter's raw directory. It returns the local page paths in page order.
func (c *Client) Download(ctx context.Context, seriesID string, index int) ([]string, error) {
	started := time.Now()

	chapterURL, err := c.chapterURL(ctx, seriesID, index)
	if err != nil {
		return nil, err
	}

	imageURLs, err := c.scrapeImages(ctx, chapterURL)
	if err != nil {
		return nil, err
	}
	if len(imageURLs) == 0 {
		return nil, fmt.Errorf("chapter page %s lists no images", chapterURL)
	}

	dir := c.chapterPath(seriesID, index, rawDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chapter dir %s: %w", dir, err)
	}

	pages := make([]string, 0, len(imageURLs))
	for i, imageURL := range imageURLs {
		target := filepath.Join(dir, fmt.Sprintf("%03d%s", i+1, imageExt(imageURL)))
		if err := c.downloadImage(ctx, imageURL, target); err != nil {
			return nil, fmt.Errorf("failed to download page %d of %s/%d: %w", i+1, seriesID, index, err)
		}
		pages = append(pages, target)
	}

	c.logger.Performance("chapter_download", time.Since(started),
		slog.String("series_id", seriesID),
		slog.Int("chapter", index),
		slog.Int("pages", len(pages)))
	return pages, nil
}

// Pages returns the library copy of an already downloaded chapter, for
// translate-only tasks that skip the download stage.
func (c *Client) Pages(seriesID string, index int) ([]string, error) {
	dir := c.chapterPath(seriesID, index, rawDir)
	pages, err := fileutil.ListImages(dir)
	if err != nil {
		return nil, fmt.Errorf("chapter %s/%d has no downloaded pages: %w", seriesID, index, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("chapter %s/%d has no downloaded pages", seriesID, index)
	}
	return pages, nil
}

// chapterURL resolves the chapter page by scraping the series episode list.
// The mirror lists episodes newest first; index counts from the oldest.
func (c *Client) chapterURL(ctx context.Context, seriesID string, index int) (string, error) {
	body, err := c.fetch(ctx, c.baseURL+seriesID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch series page for %s: %w", seriesID, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse series page for %s: %w", seriesID, err)
	}

	var hrefs []string
	doc.Find("td.content__title").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("data-role"); ok && href != "" {
			hrefs = append(hrefs, href)
		}
	})

	if len(hrefs) == 0 {
		return "", fmt.Errorf("series page for %s lists no episodes", seriesID)
	}
	position := len(hrefs) - 1 - index
	if position < 0 || position >= len(hrefs) {
		return "", fmt.Errorf("series %s has no chapter %d (%d listed)", seriesID, index, len(hrefs))
	}
	return c.resolve(hrefs[position]), nil
}

// scrapeImages pulls the image URLs out of a chapter page. The list lives
// base64-encoded in the toon_img script variable, itself an HTML fragment
// of img tags.
func (c *Client) scrapeImages(ctx context.Context, chapterURL string) ([]string, error) {
	body, err := c.fetch(ctx, chapterURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chapter page %s: %w", chapterURL, err)
	}

	match := toonImgPattern.FindStringSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("chapter page %s has no image payload", chapterURL)
	}
	decoded, err := base64.StdEncoding.DecodeString(match[1])
	if err != nil {
		return nil, fmt.Errorf("chapter page %s has a malformed image payload: %w", chapterURL, err)
	}

	fragment, err := goquery.NewDocumentFromReader(strings.NewReader(string(decoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse image payload of %s: %w", chapterURL, err)
	}

	var images []string
	fragment.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			images = append(images, c.resolve(src))
		}
	})
	return images, nil
}

func (c *Client) downloadImage(ctx context.Context, imageURL, target string) error {
	return retry.Do(
		func() error {
			body, err := c.get(ctx, imageURL)
			if err != nil {
				return err
			}
			defer body.Close()

			f, err := os.Create(target)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			defer f.Close()

			if _, err := io.Copy(f, body); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Toonkor("Retrying image download", "url", imageURL, "attempt", n+1, "error", err.Error())
		}),
	)
}

// fetch retrieves a page body with the same retry policy as images.
func (c *Client) fetch(ctx context.Context, pageURL string) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			body, err := c.get(ctx, pageURL)
			if err != nil {
				return "", err
			}
			defer body.Close()

			data, err := io.ReadAll(body)
			if err != nil {
				return "", fmt.Errorf("failed to read %s: %w", pageURL, err)
			}
			return string(data), nil
		},
		retry.Context(ctx),
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchDelay),
	)
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to build request for %s: %w", rawURL, err))
	}
	// The mirror serves an empty shell to clients without a browser UA.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err := fmt.Errorf("request to %s returned %d", rawURL, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) resolve(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	joined, err := url.JoinPath(c.baseURL, href)
	if err != nil {
		return c.baseURL + "/" + strings.TrimLeft(href, "/")
	}
	return joined
}

// chapterPath builds MEDIA_DIR/<series>/<chapter>/<class dir>.
func (c *Client) chapterPath(seriesID string, index int, sub string) string {
	return ChapterPath(c.mediaDir, seriesID, index, sub)
}

// ChapterPath is the library layout shared by the downloader, the cleaner
// and the GUI: raw pages and translated pages live side by side under one
// chapter directory.
func ChapterPath(mediaDir, seriesID string, index int, sub string) string {
	return filepath.Join(mediaDir, fileutil.SafeName(seriesID), fmt.Sprintf("%04d", index), sub)
}

func imageExt(imageURL string) string {
	ext := strings.ToLower(filepath.Ext(imageURL))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if !fileutil.IsImage("x" + ext) {
		return ".jpg"
	}
	return ext
}
