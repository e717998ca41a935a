package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
)

const maxErrorBody = 512

// Warp10Writer posts points in the Warp 10 GTS input format to the update
// endpoint of one instance.
type Warp10Writer struct {
	endpoint string
	token    string
	client   *http.Client
	logger   logger.Logger
}

func NewWarp10Writer(cfg config.Warp10Config, log logger.Logger) (*Warp10Writer, error) {
	endpoint, err := updateEndpoint(cfg.URL)
	if err != nil {
		return nil, apperrors.ErrConfig.WithCause(err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	return &Warp10Writer{
		endpoint: endpoint,
		token:    cfg.Token,
		client:   &http.Client{Timeout: timeout},
		logger:   log,
	}, nil
}

func updateEndpoint(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid warp10 url %q: %w", base, err)
	}
	if u.Scheme != constants.SchemeHTTP && u.Scheme != constants.SchemeHTTPS {
		return "", fmt.Errorf("invalid warp10 url %q: scheme must be http or https", base)
	}
	return u.JoinPath(constants.Warp10UpdatePath).String(), nil
}

func (w *Warp10Writer) Name() string {
	return constants.StoreTypeWarp10
}

func (w *Warp10Writer) Write(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewBufferString(EncodeGTS(points)))
	if err != nil {
		return apperrors.ErrStoreWrite.WithCause(err)
	}
	req.Header.Set(constants.Warp10TokenHeader, w.token)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := w.client.Do(req)
	if err != nil {
		return apperrors.ErrStoreWrite.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := apperrors.ErrStoreWrite.
			WithCause(fmt.Errorf("warp10 answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))).
			WithDetail("status", resp.StatusCode)
		if resp.StatusCode < 500 {
			return err.AsFatal()
		}
		return err
	}
	io.Copy(io.Discard, resp.Body)

	w.logger.Debugw("Points posted to Warp 10",
		"points", len(points),
		"status", resp.StatusCode,
	)
	return nil
}

func (w *Warp10Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// EncodeGTS renders points one per line as
// "<micros>// <class>{<k>=<v>,...} <value>".
func EncodeGTS(points []Point) string {
	var b strings.Builder
	for _, p := range points {
		b.WriteString(strconv.FormatInt(p.Timestamp.UnixMicro(), 10))
		b.WriteString("// ")
		b.WriteString(gtsEscape(p.ClassName))
		b.WriteByte('{')
		for i, l := range p.Labels {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(gtsEscape(l.Key))
			b.WriteByte('=')
			b.WriteString(gtsEscape(l.Value))
		}
		b.WriteString("} ")
		b.WriteString(strconv.FormatInt(p.Value, 10))
		b.WriteByte('\n')
	}
	return b.String()
}

// gtsEscape percent-encodes what would break the line syntax. Warp 10
// URL-decodes class names and labels on ingestion.
func gtsEscape(s string) string {
	return url.QueryEscape(s)
}

var _ Writer = (*Warp10Writer)(nil)
