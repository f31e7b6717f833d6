package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zone-router/internal/model"
	"github.com/sells-group/zone-router/internal/resilience"
)

// SensorSource supplies the latest sensor records of one kind.
type SensorSource interface {
	FetchSensors(ctx context.Context, kind model.SensorKind) ([]SensorRecord, error)
}

// HTTPOptions configures an HTTP client for an upstream service.
type HTTPOptions struct {
	BaseURL   string
	UserAgent string
	// MaxBodyBytes caps the decoded response size. Default: 32 MiB.
	MaxBodyBytes int64
	Client       *http.Client
	Policy       *resilience.Policy
}

func (o *HTTPOptions) defaults(source string) {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.UserAgent == "" {
		o.UserAgent = "zone-router/1.0"
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 32 << 20
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Policy == nil {
		o.Policy = resilience.NewPolicy(source, resilience.PolicyConfig{}, nil)
	}
}

// getJSON issues a guarded GET and decodes a JSON body into out.
func getJSON[T any](ctx context.Context, o *HTTPOptions, u string) (T, error) {
	return resilience.Call(ctx, o.Policy, func(ctx context.Context) (T, error) {
		var out T
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return out, eris.Wrapf(err, "%s: build request", o.Policy.Source)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", o.UserAgent)

		resp, err := o.Client.Do(req)
		if err != nil {
			return out, eris.Wrapf(err, "%s: GET %s", o.Policy.Source, req.URL.Path)
		}
		defer resp.Body.Close() //nolint:errcheck

		body := io.LimitReader(resp.Body, o.MaxBodyBytes)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(body, 1024))
			return out, resilience.StatusError(o.Policy.Source, resp.StatusCode, string(msg))
		}
		if err := json.NewDecoder(body).Decode(&out); err != nil {
			return out, eris.Wrapf(err, "%s: decode response", o.Policy.Source)
		}
		return out, nil
	})
}

// HTTPSensorClient reads sensor records from the context broker's REST API:
// GET {base}/sensors?type={kind} returning a JSON array of records.
type HTTPSensorClient struct {
	opts HTTPOptions
}

// NewHTTPSensorClient creates a sensor client.
func NewHTTPSensorClient(opts HTTPOptions) (*HTTPSensorClient, error) {
	if opts.BaseURL == "" {
		return nil, eris.New("source: sensor base_url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, eris.Wrap(err, "source: parse sensor base_url")
	}
	opts.defaults("sensors")
	return &HTTPSensorClient{opts: opts}, nil
}

// FetchSensors implements SensorSource.
func (c *HTTPSensorClient) FetchSensors(ctx context.Context, kind model.SensorKind) ([]SensorRecord, error) {
	u := c.opts.BaseURL + "/sensors?" + url.Values{"type": {string(kind)}}.Encode()
	recs, err := getJSON[[]SensorRecord](ctx, &c.opts, u)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].Kind == "" {
			recs[i].Kind = kind
		}
	}
	return recs, nil
}
