// Package kafka mirrors job progress events onto a Kafka topic.
package kafka

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/IBM/sarama"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/events"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
)

// HeaderEventType carries the event type so consumers can filter without
// decoding the payload.
const HeaderEventType = "event_type"

// Publisher implements core.EventPublisher with an async producer. Messages
// are keyed by job id so one job's events stay ordered within a partition.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *logging.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewProducerConfig returns the producer settings used in production.
func NewProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	return cfg
}

// NewPublisher connects to the configured brokers.
func NewPublisher(cfg config.KafkaConfig, logger *logging.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "events.kafka.brokers is empty")
	}
	if cfg.Topic == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "events.kafka.topic is empty")
	}
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, NewProducerConfig(cfg.ClientID))
	if err != nil {
		return nil, err
	}
	return newPublisher(producer, cfg.Topic, logger), nil
}

func newPublisher(producer sarama.AsyncProducer, topic string, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

func (p *Publisher) drainErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		jobID := ""
		if perr.Msg != nil && perr.Msg.Key != nil {
			if key, err := perr.Msg.Key.Encode(); err == nil {
				jobID = string(key)
			}
		}
		p.logger.Warn("kafka publish failed", "topic", p.topic, "job_id", jobID, "error", perr.Err)
	}
}

// PublishProgress sends a progress snapshot. It never blocks on the broker.
func (p *Publisher) PublishProgress(view core.ProgressView) {
	p.send(events.NewJobProgressEvent(view))
}

// PublishProviderState sends a provider lifecycle change.
func (p *Publisher) PublishProviderState(jobID core.JobID, provider core.ProviderName, state core.ProviderState, attempt int, message string) {
	p.send(events.NewProviderStateEvent(jobID, provider, state, attempt, message))
}

func (p *Publisher) send(ev events.Event) {
	if p == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("kafka encode failed", "job_id", ev.JobID(), "error", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.JobID()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderEventType), Value: []byte(ev.EventType())},
		},
		Timestamp: ev.Timestamp(),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	p.producer.Input() <- msg
}

// Close flushes buffered messages and stops the producer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	<-p.done
	var perrs sarama.ProducerErrors
	if errors.As(err, &perrs) {
		p.logger.Warn("kafka close dropped messages", "count", len(perrs))
	}
	return err
}
