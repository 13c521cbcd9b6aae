package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/coursewatch/coursewatch/internal/config"
	"github.com/coursewatch/coursewatch/internal/types"
)

// maxSnapshotBytes caps how much of a response body is read.
const maxSnapshotBytes = 16 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSource downloads a delimited closures list over HTTP. Every row names one
// closed section; a section that is not listed is open.
type CSVSource struct {
	url       string
	userAgent string
	delimiter rune
	decoder   *encoding.Decoder
	columns   config.ColumnsConfig
	client    *http.Client
	logger    zerolog.Logger
}

// NewCSVSource creates a source from validated configuration.
func NewCSVSource(cfg config.SourceConfig, timeout time.Duration, logger zerolog.Logger) *CSVSource {
	delim, _ := utf8.DecodeRuneInString(cfg.Delimiter)
	return &CSVSource{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		delimiter: delim,
		decoder:   decoderFor(cfg.Encoding),
		columns:   cfg.Columns,
		client:    newHTTPClient(timeout),
		logger:    logger.With().Str("component", "source").Logger(),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// decoderFor returns nil for UTF-8, which is validated instead of transcoded.
func decoderFor(name string) *encoding.Decoder {
	switch strings.ToLower(name) {
	case "windows-1252":
		return charmap.Windows1252.NewDecoder()
	case "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder()
	default:
		return nil
	}
}

// Name returns the snapshot URL.
func (s *CSVSource) Name() string {
	return s.url
}

// Fetch downloads and parses the snapshot.
func (s *CSVSource) Fetch(ctx context.Context) (types.ClosedSet, error) {
	body, err := s.download(ctx)
	if err != nil {
		return nil, err
	}
	return s.parse(body)
}

func (s *CSVSource) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, networkErr("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, networkErr("failed to download snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, networkErr("snapshot returned status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, networkErr("failed to read snapshot: %w", err)
	}

	s.logger.Debug().
		Int("bytes", len(body)).
		Msg("Snapshot downloaded")

	return body, nil
}

func (s *CSVSource) parse(body []byte) (types.ClosedSet, error) {
	text, err := s.decode(body)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = s.delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, parseErr("snapshot is empty")
		}
		return nil, parseErr("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	codeCol, groupCol, kindCol := -1, -1, -1
	var missing []string
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{s.columns.Code, &codeCol},
		{s.columns.Group, &groupCol},
		{s.columns.Kind, &kindCol},
	} {
		i, ok := index[c.name]
		if !ok {
			missing = append(missing, c.name)
			continue
		}
		*c.dst = i
	}
	if len(missing) > 0 {
		return nil, parseErr("missing columns %s", strings.Join(missing, ", "))
	}
	need := max(codeCol, groupCol, kindCol) + 1

	closed := make(types.ClosedSet)
	skipped := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseErr("reading row: %w", err)
		}
		if len(record) < need {
			skipped++
			continue
		}
		key := types.ResourceKey{
			Code:  record[codeCol],
			Group: record[groupCol],
			Kind:  record[kindCol],
		}.TrimSpace()
		if key.Code == "" || key.Group == "" || key.Kind == "" {
			skipped++
			continue
		}
		closed.Add(key)
	}

	if skipped > 0 {
		s.logger.Debug().
			Int("skipped_rows", skipped).
			Msg("Skipped malformed snapshot rows")
	}

	return closed, nil
}

func (s *CSVSource) decode(body []byte) (string, error) {
	if s.decoder == nil {
		body = bytes.TrimPrefix(body, utf8BOM)
		if !utf8.Valid(body) {
			return "", parseErr("snapshot is not valid UTF-8")
		}
		return string(body), nil
	}
	out, _, err := transform.Bytes(s.decoder, body)
	if err != nil {
		return "", parseErr("decoding snapshot: %w", err)
	}
	return string(out), nil
}
