package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	queueSize      = 64
	bufferSize     = 256
	publishTimeout = 5 * time.Second
	flushTimeout   = 2 * time.Second
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("mqtt: publisher closed")

// RealPublisher publishes to an actual MQTT broker. Publish only queues; a
// worker goroutine does the network IO, so a slow or absent broker never
// stalls the control loop. Messages that cannot be sent are kept in a ring
// buffer and replayed when the connection comes back.
type RealPublisher struct {
	client  paho.Client
	log     *zap.SugaredLogger
	breaker *gobreaker.CircuitBreaker

	connected atomic.Bool
	everUp    atomic.Bool

	mu      sync.Mutex
	closed  bool
	pending *ringBuffer

	queue       chan bufferedMsg
	reconnected chan struct{}
	done        chan struct{}
	cancel      context.CancelFunc
}

// NewRealPublisher creates a publisher for broker and starts connecting in
// the background, retrying with exponential backoff until Close.
func NewRealPublisher(broker string, log *zap.SugaredLogger) *RealPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	p := &RealPublisher{
		log:         log,
		pending:     newRingBuffer(bufferSize),
		queue:       make(chan bufferedMsg, queueSize),
		reconnected: make(chan struct{}, 1),
		done:        make(chan struct{}),
		cancel:      cancel,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("circuit breaker", "name", name, "from", from.String(), "to", to.String())
		},
	})

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	clientID := "garden-irrigator-" + uuid.NewString()[:8]
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.connected.Store(false)
			log.Warnw("mqtt connection lost", "error", err)
		})
	p.client = paho.NewClient(opts)

	go p.connect(ctx, broker)
	go p.run()
	return p
}

func (p *RealPublisher) connect(ctx context.Context, broker string) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0 // keep trying until Close

	err := backoff.Retry(func() error {
		token := p.client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("connect to %s: timeout", broker)
		}
		if err := token.Error(); err != nil {
			p.log.Warnw("mqtt connect failed", "broker", broker, "error", err)
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil && ctx.Err() == nil {
		p.log.Errorw("mqtt connect abandoned", "broker", broker, "error", err)
	}
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.connected.Store(true)
	p.log.Infow("mqtt connected")
	if p.everUp.Swap(true) {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		p.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: false})
	}
	select {
	case p.reconnected <- struct{}{}:
	default:
	}
}

// run is the only goroutine that publishes.
func (p *RealPublisher) run() {
	defer close(p.done)
	for {
		select {
		case msg, ok := <-p.queue:
			if !ok {
				return
			}
			p.send(msg)
		case <-p.reconnected:
			p.replay()
		}
	}
}

func (p *RealPublisher) send(msg bufferedMsg) {
	if !p.connected.Load() {
		p.hold(msg)
		return
	}
	_, err := p.breaker.Execute(func() (interface{}, error) {
		token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) {
			return nil, errors.New("publish timeout")
		}
		return nil, token.Error()
	})
	if err != nil {
		p.log.Warnw("mqtt publish failed, buffering", "topic", msg.topic, "error", err)
		p.hold(msg)
	}
}

func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.pending.drainAll()
	p.mu.Unlock()
	if len(msgs) > 0 {
		p.log.Infow("replaying buffered messages", "count", len(msgs))
	}
	for _, msg := range msgs {
		p.send(msg)
	}
}

func (p *RealPublisher) hold(msg bufferedMsg) {
	p.mu.Lock()
	first := p.pending.push(msg)
	p.mu.Unlock()
	if first {
		p.log.Warnw("mqtt buffer full, dropping oldest", "capacity", bufferSize)
	}
}

// enqueue hands msg to the worker without blocking. If the queue is full the
// message goes straight to the offline buffer.
func (p *RealPublisher) enqueue(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- msg:
	default:
		if p.pending.push(msg) {
			p.log.Warnw("mqtt buffer full, dropping oldest", "capacity", bufferSize)
		}
	}
	return nil
}

// Publish queues a transition event (QoS 0, not retained).
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.enqueue(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem queues a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.connected.Load()
}

// Close flushes queued messages for up to two seconds, then disconnects.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.cancel()
	select {
	case <-p.done:
	case <-time.After(flushTimeout):
		p.log.Warnw("mqtt flush timed out")
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
