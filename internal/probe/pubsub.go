package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/hamed0406/healthmon/internal/domain"
)

// brokerConn is the part of *kafka.Conn the pub/sub probe uses.
type brokerConn interface {
	Controller() (kafka.Broker, error)
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	SetDeadline(t time.Time) error
	Close() error
}

type DialFunc func(ctx context.Context, network, address string) (brokerConn, error)

func dialKafka(ctx context.Context, network, address string) (brokerConn, error) {
	return kafka.DialContext(ctx, network, address)
}

// PubSubProbe checks that the broker cluster has a controller and that every
// partition of the watched topics has a leader.
type PubSubProbe struct {
	Brokers []string
	Topics  []string
	Dial    DialFunc
}

func NewPubSubProbe(brokers, topics []string) *PubSubProbe {
	return &PubSubProbe{Brokers: brokers, Topics: topics, Dial: dialKafka}
}

func (p *PubSubProbe) Name() string { return "pubsub" }

func (p *PubSubProbe) Run(ctx context.Context) domain.ProbeResult {
	start := time.Now()
	conn, err := p.connect(ctx)
	if err != nil {
		return domain.Failed(p.Name(), start, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	ctrl, err := conn.Controller()
	if err != nil {
		return domain.Failed(p.Name(), start, fmt.Errorf("controller: %w", err))
	}
	parts, err := conn.ReadPartitions(p.Topics...)
	if err != nil {
		return domain.Failed(p.Name(), start, fmt.Errorf("read partitions: %w", err))
	}

	leaderless := 0
	for _, part := range parts {
		if part.Leader.Host == "" {
			leaderless++
		}
	}
	out := domain.ProbeResult{
		Name:       p.Name(),
		Status:     domain.StatusHealthy,
		LatencyMS:  domain.SinceMS(start),
		ObservedAt: time.Now().UTC(),
		Detail: map[string]any{
			"controller":           fmt.Sprintf("%s:%d", ctrl.Host, ctrl.Port),
			"partitions":           len(parts),
			"leaderlessPartitions": leaderless,
		},
	}
	if leaderless > 0 {
		out.Status = domain.StatusDegraded
	}
	return out
}

// connect tries each broker in order and returns the first live connection.
func (p *PubSubProbe) connect(ctx context.Context) (brokerConn, error) {
	if len(p.Brokers) == 0 {
		return nil, fmt.Errorf("no brokers configured")
	}
	dial := p.Dial
	if dial == nil {
		dial = dialKafka
	}
	var errs error
	for _, addr := range p.Brokers {
		conn, err := dial(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		errs = multierr.Append(errs, fmt.Errorf("dial %s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs
}
