package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/healthmon/internal/domain"
)

// CoordinationProbe asks the coordination API for the health of its streams.
type CoordinationProbe struct {
	URL    string
	Client *http.Client
}

func NewCoordinationProbe(url string, timeout time.Duration) *CoordinationProbe {
	return &CoordinationProbe{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (c *CoordinationProbe) Name() string { return "coordination" }

// coordinationBody is the optional JSON body returned by the health endpoint.
type coordinationBody struct {
	Status       string            `json:"status"`
	Streams      map[string]string `json:"streams"`
	ErrorRatePct *float64          `json:"errorRatePct"`
}

func (c *CoordinationProbe) Run(ctx context.Context) domain.ProbeResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return domain.Failed(c.Name(), start, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return domain.Failed(c.Name(), start, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	latency := domain.SinceMS(start)
	if err != nil {
		return domain.Failed(c.Name(), start, fmt.Errorf("read body: %w", err))
	}

	out := domain.ProbeResult{
		Name:       c.Name(),
		Status:     domain.StatusHealthy,
		LatencyMS:  latency,
		ObservedAt: time.Now().UTC(),
		Detail:     map[string]any{domain.DetailHTTPStatus: resp.StatusCode},
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.Status = domain.StatusUnhealthy
		out.Detail[domain.DetailError] = resp.Status
		return out
	}
	if len(raw) == 0 {
		return out
	}

	var body coordinationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		out.Status = domain.StatusUnhealthy
		out.Detail[domain.DetailError] = "malformed response: " + err.Error()
		return out
	}

	unhealthy := 0
	worst := domain.StatusHealthy
	for _, s := range body.Streams {
		st := parseStatus(s)
		if st != domain.StatusHealthy {
			unhealthy++
		}
		worst = worseOf(worst, st)
	}
	if body.Status != "" {
		worst = worseOf(worst, parseStatus(body.Status))
	}
	out.Status = worst
	out.Detail["streams"] = len(body.Streams)
	out.Detail["unhealthyStreams"] = unhealthy
	if body.ErrorRatePct != nil {
		out.Detail[domain.DetailErrorRatePct] = *body.ErrorRatePct
	}
	return out
}

func parseStatus(s string) domain.Status {
	switch s {
	case "healthy", "ok", "up":
		return domain.StatusHealthy
	case "degraded", "warning":
		return domain.StatusDegraded
	}
	return domain.StatusUnhealthy
}

func worseOf(a, b domain.Status) domain.Status {
	rank := func(s domain.Status) int {
		switch s {
		case domain.StatusHealthy:
			return 0
		case domain.StatusDegraded:
			return 1
		}
		return 2
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
