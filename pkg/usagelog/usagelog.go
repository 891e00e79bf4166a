// Package usagelog provides deferred, fire-and-forget recording of API
// usage. Entries are queued on a buffered channel and written by a
// background worker; failures in this path never affect the caller's
// response, and a full queue drops entries rather than blocking the
// request path.
package usagelog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/traffic-cache/pkg/store"
)

// Writer is the durable sink for usage entries.
type Writer interface {
	InsertUsageLog(ctx context.Context, entry store.UsageLog) error
}

// Config holds recorder configuration.
type Config struct {
	// QueueSize bounds the in-flight entry queue (default 1024).
	QueueSize int

	// WriteTimeout bounds each durable write (default 5s).
	WriteTimeout time.Duration

	// KafkaBrokers enables mirroring entries to a Kafka topic for
	// downstream analytics when non-empty.
	KafkaBrokers []string

	// KafkaTopic is the topic entries are mirrored to.
	KafkaTopic string
}

// Recorder queues usage entries and writes them in the background.
type Recorder struct {
	writer   Writer
	entries  chan store.UsageLog
	producer sarama.AsyncProducer
	topic    string
	timeout  time.Duration
	logger   zerolog.Logger
	stopped  chan struct{}
}

// NewRecorder creates and starts a recorder. The writer is required; the
// Kafka mirror is optional and enabled by Config.KafkaBrokers.
func NewRecorder(writer Writer, cfg Config, logger zerolog.Logger) (*Recorder, error) {
	if writer == nil {
		return nil, fmt.Errorf("usage writer is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		writer:  writer,
		entries: make(chan store.UsageLog, cfg.QueueSize),
		topic:   cfg.KafkaTopic,
		timeout: cfg.WriteTimeout,
		logger:  logger,
		stopped: make(chan struct{}),
	}

	if len(cfg.KafkaBrokers) > 0 {
		config := sarama.NewConfig()
		config.Producer.Return.Errors = true
		config.Producer.Return.Successes = false

		producer, err := sarama.NewAsyncProducer(cfg.KafkaBrokers, config)
		if err != nil {
			return nil, fmt.Errorf("usagelog: create async producer: %w", err)
		}
		r.producer = producer

		go func() {
			for err := range producer.Errors() {
				r.logger.Warn().Err(err).Msg("Usage event publish failed")
			}
		}()
	}

	go r.run()

	return r, nil
}

// Record queues one usage entry. Never blocks: a full queue drops the
// entry silently.
func (r *Recorder) Record(entry store.UsageLog) {
	select {
	case r.entries <- entry:
	default:
	}
}

// run drains the queue until Close.
func (r *Recorder) run() {
	defer close(r.stopped)

	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.writer.InsertUsageLog(ctx, entry); err != nil {
			r.logger.Warn().Err(err).Str("endpoint", entry.Endpoint).Msg("Usage log write failed")
		}
		cancel()

		r.publish(entry)
	}
}

// publish mirrors an entry to Kafka when the producer is configured.
func (r *Recorder) publish(entry store.UsageLog) {
	if r.producer == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Usage event marshal failed")
		return
	}

	r.producer.Input() <- &sarama.ProducerMessage{
		Topic: r.topic,
		Value: sarama.ByteEncoder(data),
	}
}

// Close drains queued entries and releases resources.
func (r *Recorder) Close() error {
	close(r.entries)
	<-r.stopped

	if r.producer != nil {
		if err := r.producer.Close(); err != nil {
			return fmt.Errorf("usagelog: close producer: %w", err)
		}
	}

	return nil
}
