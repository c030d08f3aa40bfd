package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	conn        Conn
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
	log         *zap.Logger
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("car-animator"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := NewWithConn(nc, prefix, logSubjects, m, log)
	p.nc = nc
	return p, nil
}

// NewWithConn builds a publisher over an existing connection.
func NewWithConn(conn Conn, prefix string, logSubjects bool, m PublisherMetrics, log *zap.Logger) *NATSPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logSubjects: logSubjects, metrics: m, log: log}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// StepMessage is one marker movement as seen by a renderer.
type StepMessage struct {
	RunID     string    `json:"runId"`
	Vehicle   string    `json:"vehicle"`
	Timestamp time.Time `json:"timestamp"`
	Cursor    int       `json:"cursor"`
	FromLat   float64   `json:"fromLat"`
	FromLon   float64   `json:"fromLon"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Bearing   float64   `json:"bearing"`
	Dwell     bool      `json:"dwell"`
	DelayMs   int64     `json:"delayMs"`
	Progress  float64   `json:"progress"`
	SpeedMps  float64   `json:"speedMps"`
	Final     bool      `json:"final"`
}

func (p *NATSPublisher) PublishStep(vehicle string, msg StepMessage) error {
	return p.publishJSON(p.Subject(vehicle, "step"), msg)
}

// PublishRoute sends the route geometry and its placemarks.
func (p *NATSPublisher) PublishRoute(vehicle string, fc *geojson.FeatureCollection) error {
	return p.publishJSON(p.Subject(vehicle, "route"), fc)
}

// Subject returns <prefix>.<vehicle>.<kind>.
func (p *NATSPublisher) Subject(vehicle, kind string) string {
	if p.prefix == "" {
		return fmt.Sprintf("%s.%s", subjectToken(vehicle), kind)
	}
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(vehicle), kind)
}

func (p *NATSPublisher) publishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		p.log.Debug("nats publish", zap.String("subject", subject), zap.Int("bytes", len(b)))
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
