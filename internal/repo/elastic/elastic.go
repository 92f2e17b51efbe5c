package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/hamed0406/healthmon/internal/repo"
)

const DefaultIndexPrefix = "health-snapshots"

type Config struct {
	Addresses []string
	Username  string
	Password  string
}

// NewClient connects to the cluster and pings it once.
func NewClient(ctx context.Context, cfg Config) (*elasticsearch.Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := es.Ping(es.Ping.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ElasticSink.Ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("ElasticSink.Ping: %s", res.Status())
	}
	return es, nil
}

// Sink indexes each record into a daily index <prefix>-YYYY.MM.DD.
type Sink struct {
	es     *elasticsearch.Client
	prefix string
}

func NewSink(es *elasticsearch.Client, prefix string) *Sink {
	if prefix == "" {
		prefix = DefaultIndexPrefix
	}
	return &Sink{es: es, prefix: prefix}
}

func (s *Sink) IndexName(ts time.Time) string {
	return s.prefix + "-" + ts.UTC().Format("2006.01.02")
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func (s *Sink) Write(ctx context.Context, r repo.Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("ElasticSink.Write encode record: %w", err)
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := s.es.Index(
		s.IndexName(ts),
		bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(r.RunID+"-"+strconv.FormatUint(r.CycleID, 10)),
	)
	if err != nil {
		return fmt.Errorf("ElasticSink.Write: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var e esErrorResponse
		raw, _ := io.ReadAll(res.Body)
		if err := json.Unmarshal(raw, &e); err != nil || e.Error.Type == "" {
			return fmt.Errorf("ElasticSink.Write: status %d", res.StatusCode)
		}
		return fmt.Errorf("ElasticSink.Write: status %d: %s: %s", res.StatusCode, e.Error.Type, e.Error.Reason)
	}
	return nil
}

// Close is a no-op; the client holds no resources that need releasing.
func (s *Sink) Close() error { return nil }
