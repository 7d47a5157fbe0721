// Package domains acquires the shuffled list of domains a run visits, reading a
// local rank,domain CSV or downloading and caching a zipped top-sites list.
package domains

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
)

// DefaultRemoteURL serves a zipped CSV of the top one million sites.
const DefaultRemoteURL = "http://s3.amazonaws.com/alexa-static/top-1m.csv.zip"

// Downloader fetches an arbitrary URL in full.
type Downloader interface {
	Get(ctx context.Context, rawURL string) (crawler.FetchResult, error)
}

// Config controls where the fallback list comes from and how it is shuffled.
type Config struct {
	RemoteURL string
	// Rand drives the shuffle; nil uses the process-wide source.
	Rand *rand.Rand
}

// Source produces the DomainList for a run.
type Source struct {
	cfg        Config
	downloader Downloader
	logger     *zap.Logger
}

// NewSource constructs a Source.
func NewSource(cfg Config, downloader Downloader, logger *zap.Logger) *Source {
	if cfg.RemoteURL == "" {
		cfg.RemoteURL = DefaultRemoteURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		cfg:        cfg,
		downloader: downloader,
		logger:     logger,
	}
}

// Acquire reads the list at path, or downloads the remote archive and caches
// its CSV at path when no local file exists, then returns the domains shuffled.
func (s *Source) Acquire(ctx context.Context, path string) ([]string, error) {
	origin := path
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied list path.
	switch {
	case err == nil:
		s.logger.Info("reading domain list", zap.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		origin = s.cfg.RemoteURL
		data, err = s.fetchRemote(ctx, path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &Error{Kind: KindRead, Source: path, Err: err}
	}

	list, err := Parse(data)
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			de.Source = origin
		}
		return nil, err
	}
	Shuffle(list, s.cfg.Rand)
	s.logger.Info("domain list ready", zap.Int("domains", len(list)), zap.String("source", origin))
	return list, nil
}

func (s *Source) fetchRemote(ctx context.Context, cachePath string) ([]byte, error) {
	if s.downloader == nil {
		return nil, &Error{Kind: KindDownload, Source: s.cfg.RemoteURL, Err: errors.New("no downloader configured")}
	}
	s.logger.Info("downloading domain list archive", zap.String("url", s.cfg.RemoteURL))
	res, err := s.downloader.Get(ctx, s.cfg.RemoteURL)
	if err != nil {
		return nil, &Error{Kind: KindDownload, Source: s.cfg.RemoteURL, Err: err}
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Kind:   KindDownload,
			Source: s.cfg.RemoteURL,
			Err:    fmt.Errorf("unexpected status %d", res.StatusCode),
		}
	}

	data, err := ExtractFirst(res.Body)
	if err != nil {
		return nil, &Error{Kind: KindArchive, Source: s.cfg.RemoteURL, Err: err}
	}

	s.logger.Info("caching domain list", zap.String("path", cachePath), zap.Int("bytes", len(data)))
	if err := os.WriteFile(cachePath, data, 0o600); err != nil {
		return nil, &Error{Kind: KindCache, Source: cachePath, Err: err}
	}
	return data, nil
}

// ExtractFirst returns the decompressed contents of the first entry in a zip archive.
func ExtractFirst(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, errors.New("archive is empty")
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", zr.File[0].Name, err)
	}
	defer rc.Close() //nolint:errcheck // read-only entry

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", zr.File[0].Name, err)
	}
	return data, nil
}

// Parse reads headerless rank,domain records and returns the domain column in
// file order. Any record without a non-empty second column fails the whole parse.
func Parse(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var out []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &Error{Kind: KindParse, Err: err}
		}
		line, _ := r.FieldPos(0)
		if len(record) < 2 {
			return nil, &Error{
				Kind: KindParse,
				Err:  fmt.Errorf("line %d: expected at least 2 columns, got %d", line, len(record)),
			}
		}
		if record[1] == "" {
			return nil, &Error{Kind: KindParse, Err: fmt.Errorf("line %d: empty domain", line)}
		}
		out = append(out, record[1])
	}
	return out, nil
}

// Shuffle permutes domains in place. A nil r uses the process-wide source.
func Shuffle(domains []string, r *rand.Rand) {
	swap := func(i, j int) { domains[i], domains[j] = domains[j], domains[i] }
	if r == nil {
		rand.Shuffle(len(domains), swap)
		return
	}
	r.Shuffle(len(domains), swap)
}
