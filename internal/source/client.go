// Package source fetches world snapshots from the text tables published by
// the game server.
//
// The game server does not publish the slot offset table. The copy embedded
// from offsets.csv is an approximation, so town positions derived from it are
// approximate too. Set Config.OffsetsPath to load the exact table from disk.
package source

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ghostwatch/pkg/domain"
)

// DefaultUserAgent identifies the fetcher to the game server.
const DefaultUserAgent = "ghostwatch/1.0 (+ghost town tracker)"

const maxBodyBytes = 256 << 20

//go:embed offsets.csv
var offsetData []byte

// Offsets returns the static slot offset table shipped with the binary.
func Offsets() ([]domain.Offset, error) {
	return ParseOffsets(bytes.NewReader(offsetData))
}

// LoadOffsets reads the offset table at path, or the embedded table when
// path is empty.
func LoadOffsets(path string) ([]domain.Offset, error) {
	if path == "" {
		return Offsets()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = f.Close() }()
	offsets, err := ParseOffsets(f)
	if err != nil {
		return nil, errors.Annotatef(err, "offsets %s", path)
	}
	if len(offsets) == 0 {
		return nil, errors.NotValidf("empty offset table %s", path)
	}
	return offsets, nil
}

// Logger is the logging surface used by the source.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
}

// Config holds the dependencies of an HTTP source.
type Config struct {
	// BaseURL is the directory holding the four table files.
	BaseURL   string
	UserAgent string
	Client    *http.Client
	Clock     clock.Clock
	// Limiter bounds outgoing requests; nil means unlimited.
	Limiter *rate.Limiter
	// OffsetsPath replaces the embedded offset table when set.
	OffsetsPath string
	Logger      Logger
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.NotValidf("empty BaseURL")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.NotValidf("BaseURL %q", c.BaseURL)
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// HTTP downloads and parses the four world tables.
type HTTP struct {
	cfg     Config
	offsets []domain.Offset
}

// New returns an HTTP source.
func New(cfg Config) (*HTTP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 2 * time.Minute}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(rate.Inf, 0)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	offsets, err := LoadOffsets(cfg.OffsetsPath)
	if err != nil {
		return nil, errors.Annotate(err, "load offset table")
	}
	return &HTTP{cfg: cfg, offsets: offsets}, nil
}

// Fetch downloads all tables concurrently and assembles a snapshot stamped
// with the time the last table arrived. Any failed download or malformed
// record fails the whole fetch.
func (h *HTTP) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	ctx, span := otel.Tracer("ghostwatch/source").Start(ctx, "source.Fetch")
	defer span.End()

	var tables domain.Tables
	tables.Offsets = append([]domain.Offset(nil), h.offsets...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tables.Alliances, err = fetchTable(gctx, h, ResourceAlliances, ParseAlliances)
		return err
	})
	g.Go(func() (err error) {
		tables.Players, err = fetchTable(gctx, h, ResourcePlayers, ParsePlayers)
		return err
	})
	g.Go(func() (err error) {
		tables.Towns, err = fetchTable(gctx, h, ResourceTowns, ParseTowns)
		return err
	})
	g.Go(func() (err error) {
		tables.Islands, err = fetchTable(gctx, h, ResourceIslands, ParseIslands)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	snap, err := domain.NewSnapshot(h.cfg.Clock.Now(), tables)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Annotate(err, "assemble snapshot")
	}
	span.SetAttributes(
		attribute.Int("ghostwatch.towns", len(tables.Towns)),
		attribute.Int("ghostwatch.players", len(tables.Players)),
	)
	h.cfg.Logger.Infof("fetched %d towns, %d players, %d alliances, %d islands",
		len(tables.Towns), len(tables.Players), len(tables.Alliances), len(tables.Islands))
	return snap, nil
}

func fetchTable[T any](ctx context.Context, h *HTTP, resource string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	body, err := h.get(ctx, resource)
	if err != nil {
		return nil, err
	}
	rows, err := parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	h.cfg.Logger.Debugf("parsed %d records from %s", len(rows), resource)
	return rows, nil
}

func (h *HTTP) get(ctx context.Context, resource string) ([]byte, error) {
	if err := h.cfg.Limiter.Wait(ctx); err != nil {
		return nil, errors.Annotatef(err, "throttle %s", resource)
	}
	url := h.cfg.BaseURL + "/" + resource
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	req.Header.Set("User-Agent", h.cfg.UserAgent)
	resp, err := h.cfg.Client.Do(req)
	if err != nil {
		return nil, errors.Annotatef(err, "get %s", resource)
	}
	defer func() { _ = resp.Body.Close() }()
	h.cfg.Logger.Debugf("got status %d for %s", resp.StatusCode, url)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Resource: resource, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", resource)
	}
	return body, nil
}

// StatusError reports a non-2xx response for a resource.
type StatusError struct {
	Resource string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: unexpected status %d %s", e.Resource, e.Code, http.StatusText(e.Code))
}
