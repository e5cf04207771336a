package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// maxContentBytes bounds how much normalized text a single extraction may
// produce. Oversized inputs are truncated, not rejected.
const maxContentBytes = 512 * 1024

var (
	tagPattern        = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[ \t]+`)
	blankLinePattern  = regexp.MustCompile(`\n{3,}`)
	titlePattern      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// ContentExtractor is the built-in Extractor. It normalizes plain text
// submissions, fetches and strips URL content, and reads plain-text file
// uploads. Rich document formats are left to external collaborators.
type ContentExtractor struct {
	http   *resty.Client
	logger *slog.Logger
}

// Ensure ContentExtractor implements the Extractor interface
var _ Extractor = (*ContentExtractor)(nil)

// NewContentExtractor creates a ContentExtractor with its own HTTP client.
func NewContentExtractor(logger *slog.Logger) *ContentExtractor {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "recall-api/1.0")

	return &ContentExtractor{
		http:   client,
		logger: logger.With("component", "content_extractor"),
	}
}

// Extract normalizes the given source.
func (e *ContentExtractor) Extract(ctx context.Context, src Source) (*NormalizedContent, error) {
	switch src.Kind {
	case SourceText:
		return e.extractText(src.Text)
	case SourceURL:
		return e.extractURL(ctx, src.URL)
	case SourceFile:
		return e.extractFile(src.FileName, src.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Kind)
	}
}

func (e *ContentExtractor) extractText(text string) (*NormalizedContent, error) {
	normalized := normalize(text)
	if normalized == "" {
		return nil, ErrEmptySource
	}
	return &NormalizedContent{Text: normalized}, nil
}

func (e *ContentExtractor) extractURL(ctx context.Context, rawURL string) (*NormalizedContent, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrEmptySource
	}

	resp, err := e.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/") &&
		!strings.Contains(contentType, "html") && !strings.Contains(contentType, "json") {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedFileType, contentType)
	}

	body := string(resp.Body())
	title := ""
	if m := titlePattern.FindStringSubmatch(body); len(m) > 1 {
		title = strings.TrimSpace(m[1])
	}

	text := normalize(tagPattern.ReplaceAllString(body, " "))
	if text == "" {
		return nil, ErrEmptySource
	}

	e.logger.Debug("extracted URL content",
		"url", rawURL,
		"title", title,
		"content_length", len(text))

	return &NormalizedContent{Title: title, Text: text}, nil
}

func (e *ContentExtractor) extractFile(name string, data []byte) (*NormalizedContent, error) {
	if len(data) == 0 {
		return nil, ErrEmptySource
	}

	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".txt", ".md", ".markdown", "":
		text := normalize(string(data))
		if text == "" {
			return nil, ErrEmptySource
		}
		return &NormalizedContent{Title: strings.TrimSuffix(name, ext), Text: text}, nil
	default:
		// PDF, DOCX and friends need a dedicated extraction collaborator.
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// normalize collapses whitespace, strips blank-line runs, and truncates to
// the extraction size bound.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = blankLinePattern.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if len(text) > maxContentBytes {
		text = text[:maxContentBytes]
	}
	return text
}
