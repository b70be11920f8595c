package seed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	readability "codeberg.org/readeck/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"

	"github.com/visiboard/discover/app/store"
)

const (
	fetchTimeout    = 30 * time.Second
	maxImageBytes   = 8 << 20
	summaryMaxRunes = 200
)

// Seeder fills the local note store from an RSS/Atom feed, turning entries
// into location-tagged notes scattered around a center point. It exists so
// the server has realistic content to page through without the production
// document store.
type Seeder struct {
	repo       *store.NoteRepository
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string

	centerLat float64
	centerLng float64
	span      float64
	rnd       *rand.Rand
}

func NewSeeder(repo *store.NoteRepository, httpClient *http.Client, userAgent string,
	centerLat, centerLng, span float64) *Seeder {
	return &Seeder{
		repo:       repo,
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		centerLat:  centerLat,
		centerLng:  centerLng,
		span:       span,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run fetches and parses the feed, converts each entry into a note and
// upserts it. Per-entry failures are logged and skipped; the count of
// stored notes is returned.
func (s *Seeder) Run(ctx context.Context, feedURL string) (int, error) {
	data, err := s.fetch(ctx, feedURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch seed feed: %w", err)
	}

	parsed, err := s.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to parse seed feed: %w", err)
	}

	stored := 0
	for _, item := range parsed.Items {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if item == nil {
			continue
		}

		note := s.buildNote(item)

		// Link-only entries carry no body of their own; pull readable text
		// out of the linked page instead.
		if note.Text == "" && item.Link != "" {
			if text, err := s.extractFromLink(ctx, item.Link); err != nil {
				slog.Debug("Failed to extract linked content", "link", item.Link, "error", err)
			} else {
				note.Text = text
			}
		}

		if url := firstImageURL(item); url != "" {
			s.attachImage(ctx, &note, url)
		}

		if err := s.repo.UpsertNote(ctx, note); err != nil {
			slog.Warn("Failed to store seeded note", "guid", item.GUID, "error", err)
			continue
		}
		stored++
	}

	slog.Info("Note store seeded", "url", feedURL, "entries", len(parsed.Items), "stored", stored)

	return stored, nil
}

// buildNote maps a feed entry to a note record. IDs are derived from the
// entry GUID so reseeding the same feed is idempotent.
func (s *Seeder) buildNote(item *gofeed.Item) store.Note {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}

	text := item.Content
	if text == "" {
		text = item.Description
	}
	text = norm.NFC.String(strings.TrimSpace(text))

	createdAt := time.Now().UnixMilli()
	if item.PublishedParsed != nil {
		createdAt = item.PublishedParsed.UnixMilli()
	}

	note := store.Note{
		ID:        noteID(guid),
		Text:      text,
		Summary:   truncateRunes(norm.NFC.String(item.Title), summaryMaxRunes),
		CreatedAt: createdAt,
		LikeCount: s.rnd.Intn(100),
		Lat:       s.centerLat + (s.rnd.Float64()*2-1)*s.span,
		Lng:       s.centerLng + (s.rnd.Float64()*2-1)*s.span,
	}

	if author := firstAuthor(item); author != "" {
		note.UserName = author
		note.UserID = noteID("author|" + author)
	}

	return note
}

// extractFromLink downloads the linked page and extracts its readable text.
func (s *Seeder) extractFromLink(ctx context.Context, url string) (string, error) {
	data, err := s.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return ExtractText(data)
}

// ExtractText pulls readable plain text out of an HTML document, for feeds
// whose entries only carry a link.
func ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	return norm.NFC.String(text), nil
}

// attachImage downloads the entry image, stores it as a base64 payload and
// records the native dimensions. Best effort: any failure leaves the note
// image-less.
func (s *Seeder) attachImage(ctx context.Context, note *store.Note, url string) {
	data, err := s.fetch(ctx, url)
	if err != nil {
		slog.Debug("Failed to download seed image", "url", url, "error", err)
		return
	}
	if len(data) > maxImageBytes {
		slog.Debug("Seed image too large, skipping", "url", url, "bytes", len(data))
		return
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		slog.Debug("Seed image not decodable, skipping", "url", url, "error", err)
		return
	}

	note.ImageBase64 = base64.StdEncoding.EncodeToString(data)
	note.ImageWidth = cfg.Width
	note.ImageHeight = cfg.Height
}

func (s *Seeder) fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func noteID(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:24]
}

func firstAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	if item.Author != nil {
		return item.Author.Name
	}
	return ""
}

func firstImageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
