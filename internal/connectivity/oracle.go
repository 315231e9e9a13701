package connectivity

import (
	"context"
	"net/http"
	"time"
)

// Status is the raw connectivity report. The core treats "online" as the
// logical AND of both flags.
type Status struct {
	IsConnected         bool `json:"isConnected"`
	IsInternetReachable bool `json:"isInternetReachable"`
}

// Online reports whether the device has usable internet access.
func (s Status) Online() bool {
	return s.IsConnected && s.IsInternetReachable
}

// Oracle reports current connectivity. Check never returns an error; an
// unreachable probe simply yields an offline status.
type Oracle interface {
	Check(ctx context.Context) Status
}

// Probe determines connectivity by issuing a HEAD request against a
// no-content endpoint. A transport-level failure means no link at all; any
// HTTP response, success or not, means the internet is reachable.
type Probe struct {
	url    string
	client *http.Client
}

// NewProbe creates a Probe against url (e.g. a generate-204 endpoint).
// timeout bounds each probe request; it defaults to 3s when zero.
func NewProbe(url string, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Probe{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Check implements Oracle.
func (p *Probe) Check(ctx context.Context) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return Status{}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Status{}
	}
	defer resp.Body.Close()
	return Status{
		IsConnected:         true,
		IsInternetReachable: resp.StatusCode < 500,
	}
}

// Static is a fixed-status Oracle for tests and offline-first wiring.
type Static struct {
	Status Status
}

// Check implements Oracle.
func (s *Static) Check(ctx context.Context) Status {
	return s.Status
}

// Always returns a Static oracle that reports online when v is true.
func Always(v bool) *Static {
	return &Static{Status: Status{IsConnected: v, IsInternetReachable: v}}
}
