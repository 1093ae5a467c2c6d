// Package probe decides whether the internet is reachable by issuing
// bounded HTTP GETs against a fixed, ordered list of well-known endpoints.
//
// The verdict is true at the first endpoint that answers with a 2xx status;
// later endpoints are not contacted. Per-endpoint failures (connection
// errors, timeouts, non-2xx statuses) are recorded and probing moves on.
// There are no retries within a call.
//
// Certificate validation is disabled: the targets are plain HTTP or
// self-signed, and trust is not what is being measured.
package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/portalkeeper/pkg/logging"
	"github.com/entrhq/portalkeeper/pkg/portal"
)

// Defaults for probing.
const (
	DefaultTimeout = 10 * time.Second

	// bodyLimit caps how much of a response is read for interception checks
	bodyLimit = 256 << 10
)

// DefaultEndpoints are probed in order.
var DefaultEndpoints = []string{
	"http://www.baidu.com",
	"http://www.qq.com",
	"http://www.163.com",
}

// Config controls a Prober.
type Config struct {
	// Endpoints are probed in order; must not be empty
	Endpoints []string

	// Timeout bounds each endpoint's request. If zero, DefaultTimeout is used.
	Timeout time.Duration

	// DetectInterception treats a 2xx answer as a failure when it comes from
	// a portal host or carries the portal login form.
	DetectInterception bool

	// PortalHosts are glob patterns for hosts that serve the portal.
	PortalHosts []string

	// FormFields are the control names that identify the portal login form.
	FormFields []string
}

// Failure is one endpoint's failed attempt.
type Failure struct {
	Endpoint string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Endpoint, f.Err)
}

// Result describes a single pass over the endpoint list.
type Result struct {
	Reachable bool
	Endpoint  string // the endpoint that answered, when Reachable
	Failures  []Failure
	Latency   time.Duration
	CheckedAt time.Time
}

// Prober checks reachability. It is safe for concurrent use.
type Prober struct {
	endpoints   []string
	client      *http.Client
	timeout     time.Duration
	intercept   bool
	portalHosts []glob.Glob
	formFields  []string
	log         *logging.Logger
}

// New builds a prober. It fails on an empty endpoint list or an invalid
// host pattern.
func New(cfg Config, log *logging.Logger) (*Prober, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one probe endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Discard()
	}

	hosts, err := CompileHosts(cfg.PortalHosts)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // probe targets are not trusted anyway
	transport.DisableKeepAlives = true

	return &Prober{
		endpoints:   append([]string{}, cfg.Endpoints...),
		client:      &http.Client{Transport: transport, Timeout: timeout},
		timeout:     timeout,
		intercept:   cfg.DetectInterception,
		portalHosts: hosts,
		formFields:  append([]string{}, cfg.FormFields...),
		log:         log,
	}, nil
}

// CompileHosts compiles host glob patterns, with '.' as the separator.
func CompileHosts(patterns []string) ([]glob.Glob, error) {
	hosts := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid portal host pattern %q: %w", pattern, err)
		}
		hosts = append(hosts, g)
	}
	return hosts, nil
}

// IsReachable reports whether any endpoint answered successfully.
func (p *Prober) IsReachable(ctx context.Context) bool {
	return p.Check(ctx).Reachable
}

// Check probes the endpoints in order and stops at the first success.
func (p *Prober) Check(ctx context.Context) Result {
	start := time.Now()
	result := Result{}

	for _, endpoint := range p.endpoints {
		if ctx.Err() != nil {
			result.Failures = append(result.Failures, Failure{Endpoint: endpoint, Err: ctx.Err()})
			break
		}

		err := p.probe(ctx, endpoint)
		if err == nil {
			result.Reachable = true
			result.Endpoint = endpoint
			break
		}

		p.log.Debugf("network disconnected @%v", err)
		result.Failures = append(result.Failures, Failure{Endpoint: endpoint, Err: err})
	}

	result.Latency = time.Since(start)
	result.CheckedAt = time.Now()
	if !result.Reachable && ctx.Err() == nil {
		p.log.Warnf("all %d probe endpoints failed", len(p.endpoints))
	}
	return result
}

func (p *Prober) probe(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if p.intercept {
		if err := p.checkInterception(resp); err != nil {
			return err
		}
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, bodyLimit))
	return nil
}

func (p *Prober) checkInterception(resp *http.Response) error {
	host := resp.Request.URL.Hostname()
	for _, g := range p.portalHosts {
		if g.Match(host) {
			return fmt.Errorf("intercepted by portal host %s", host)
		}
	}

	if len(p.formFields) > 0 && portal.FormPresent(io.LimitReader(resp.Body, bodyLimit), p.formFields...) {
		return fmt.Errorf("intercepted: response carries the portal login form")
	}
	return nil
}
