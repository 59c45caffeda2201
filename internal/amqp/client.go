// Package amqp publishes expense change events to a RabbitMQ topic exchange.
//
// The client guards the broker with a circuit breaker: after maxFailures
// consecutive publish failures it refuses to publish for openTimeout, then
// lets a single attempt through (half-open). Run keeps the connection alive
// and redials with exponential backoff when the broker drops it.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expenseui/internal/controller"
	"expenseui/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var errCircuitOpen = errors.New("circuit breaker is open")

// channel is the subset of *amqp091.Channel the client publishes through.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type session struct {
	ch     channel
	closed <-chan *amqp091.Error
	close  func() error
}

type dialFunc func(url, exchange string) (*session, error)

type Client struct {
	url          string
	exchangeName string
	routingKey   string
	logger       *log.Logger
	dial         dialFunc

	mu   sync.Mutex
	sess *session

	failureCount int64
	state        int32
	lastFailure  time.Time
	published    int64
}

var _ controller.ChangeNotifier = (*Client)(nil)

// NewClient dials the broker and declares the exchange. The returned client
// is ready to publish; call Run to keep it connected.
func NewClient(url, exchangeName, routingKey string, logger *log.Logger) (*Client, error) {
	c := newClient(url, exchangeName, routingKey, logger, dialAMQP)
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(url, exchangeName, routingKey string, logger *log.Logger, dial dialFunc) *Client {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		routingKey:   routingKey,
		logger:       logger.WithComponent(log.ComponentAMQP),
		dial:         dial,
	}
}

func dialAMQP(url, exchange string) (*session, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &session{
		ch:     ch,
		closed: conn.NotifyClose(make(chan *amqp091.Error, 1)),
		close: func() error {
			ch.Close()
			return conn.Close()
		},
	}, nil
}

func (c *Client) connect() error {
	s, err := c.dial(c.url, c.exchangeName)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.sess
	c.sess = s
	c.mu.Unlock()
	if old != nil && old.close != nil {
		old.close()
	}
	return nil
}

func (c *Client) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// drop forgets s if it is still the current session.
func (c *Client) drop(s *session) {
	c.mu.Lock()
	if c.sess == s {
		c.sess = nil
	}
	c.mu.Unlock()
	if s != nil && s.close != nil {
		s.close()
	}
}

// NotifyChange implements controller.ChangeNotifier.
func (c *Client) NotifyChange(ctx context.Context, ch controller.Change) error {
	return c.PublishExpenseChanged(ctx, NewExpenseChangedMessage(ch))
}

// PublishExpenseChanged publishes msg under <routing key>.<kind>.
func (c *Client) PublishExpenseChanged(ctx context.Context, msg *ExpenseChangedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msg.Kind, errCircuitOpen)
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	s := c.current()
	if s == nil {
		if err := c.connect(); err != nil {
			c.recordFailure()
			return fmt.Errorf("reconnect: %w", err)
		}
		s = c.current()
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	key := c.routingKey + "." + msg.Kind
	err = s.ch.PublishWithContext(
		pubCtx,
		c.exchangeName, // exchange
		key,            // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.MessageID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.drop(s)
		}
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	atomic.AddInt64(&c.published, 1)
	c.logger.InfoContext(ctx, "Published expense change",
		log.FieldOperation, log.OpPublish,
		log.FieldRecordID, msg.ID,
		"kind", msg.Kind,
		"routing_key", key,
		"message_id", msg.MessageID)

	return nil
}

// Run keeps the connection alive until ctx is cancelled, redialing with
// exponential backoff whenever the broker closes it.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		s := c.current()
		if s == nil {
			if err := c.connect(); err != nil {
				wait := exponentialBackoff(attempt)
				c.logger.WarnContext(ctx, "AMQP reconnect failed",
					log.FieldError, err,
					"attempt", attempt+1,
					"retry_in", wait.String())
				attempt++
				select {
				case <-ctx.Done():
					return c.Close()
				case <-time.After(wait):
				}
				continue
			}
			if attempt > 0 {
				c.logger.InfoContext(ctx, "AMQP connection restored", "attempts", attempt)
			}
			attempt = 0
			continue
		}

		select {
		case <-ctx.Done():
			return c.Close()
		case amqpErr, ok := <-s.closed:
			if ok && amqpErr != nil {
				c.logger.WarnContext(ctx, "AMQP connection closed", log.FieldError, amqpErr.Error())
			}
			c.drop(s)
		}
	}
}

// Published returns how many messages were accepted by the broker.
func (c *Client) Published() int64 {
	return atomic.LoadInt64(&c.published)
}

func (c *Client) Close() error {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()
	if s != nil && s.close != nil {
		return s.close()
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
