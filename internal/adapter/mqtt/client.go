package mqtt

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/berfenger/kal2mqtt/internal/config"
	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"

	DEFAULT_OPERATION_TIMEOUT = 5 * time.Second
	DEFAULT_QUERY_TIMEOUT     = 1 * time.Second
)

var (
	ErrNotConnected    = errors.New("mqtt not connected")
	ErrPublishFailed   = errors.New("mqtt publish failed")
	ErrSubscribeFailed = errors.New("mqtt subscribe failed")
)

func OptsFromConfig(cfg *config.Config) *pahomqtt.ClientOptions {
	topics := domain.Topics{Device: cfg.Device}
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("%s_%d", cfg.Device, rand.Intn(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = topics.Availability()
	opts.WillQos = 0

	return opts
}

// Client is the MQTT session of the device. Subscriptions survive reconnects.
type Client struct {
	client  pahomqtt.Client
	topics  domain.Topics
	qos     byte
	timeout time.Duration
	logger  *zap.Logger

	mu            sync.Mutex
	subscriptions map[string]func(payload []byte)
}

func NewClient(cfg *config.Config, opts *pahomqtt.ClientOptions, logger *zap.Logger) *Client {
	c := newClient(cfg, logger)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("mqtt@connected connection lost", zap.Error(err))
	})
	c.client = pahomqtt.NewClient(opts)
	return c
}

func newClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		topics:        domain.Topics{Device: cfg.Device},
		qos:           cfg.MQTT.QoS,
		timeout:       DEFAULT_OPERATION_TIMEOUT,
		logger:        logger.With(zap.String("component", "mqtt")),
		subscriptions: make(map[string]func([]byte)),
	}
}

func (c *Client) Topics() domain.Topics {
	return c.topics
}

func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	if err := wait(ctx, token, c.timeout); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// onConnect runs on every (re)connection: announces availability and restores subscriptions.
func (c *Client) onConnect(client pahomqtt.Client) {
	c.logger.Info("mqtt@connected connected")
	client.Publish(c.topics.Availability(), 0, true, MQTT_PAYLOAD_ONLINE)

	c.mu.Lock()
	subs := make(map[string]func([]byte), len(c.subscriptions))
	for topic, handler := range c.subscriptions {
		subs[topic] = handler
	}
	c.mu.Unlock()

	for topic, handler := range subs {
		token := client.Subscribe(topic, c.qos, messageHandler(handler))
		go func(topic string) {
			if !token.WaitTimeout(c.timeout) || token.Error() != nil {
				c.logger.Error("mqtt@connected could not restore subscription", zap.String("topic", topic), zap.Error(token.Error()))
			}
		}(topic)
	}
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	return c.publish(ctx, topic, payload, false)
}

func (c *Client) PublishRetained(ctx context.Context, topic string, payload []byte) error {
	return c.publish(ctx, topic, payload, true)
}

func (c *Client) publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("%w: publish %s", ErrNotConnected, topic)
	}
	token := c.client.Publish(topic, c.qos, retain, payload)
	if err := wait(ctx, token, c.timeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Subscribe declares a live subscription. It is restored after reconnections.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("%w: subscribe %s", ErrNotConnected, topic)
	}
	token := c.client.Subscribe(topic, c.qos, messageHandler(handler))
	if err := wait(context.Background(), token, c.timeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	c.logger.Debug("mqtt@connected subscribed", zap.String("topic", topic))
	return nil
}

// Query emulates a request/reply on a retained topic: it subscribes, takes the first
// message received within timeout and unsubscribes.
func (c *Client) Query(ctx context.Context, topic string, timeout time.Duration) ([]byte, bool, error) {
	if timeout <= 0 {
		timeout = DEFAULT_QUERY_TIMEOUT
	}
	if !c.client.IsConnectionOpen() {
		return nil, false, fmt.Errorf("%w: query %s", ErrNotConnected, topic)
	}
	received := make(chan []byte, 1)
	token := c.client.Subscribe(topic, c.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case received <- msg.Payload():
		default:
		}
	})
	if err := wait(ctx, token, c.timeout); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	defer func() {
		unsub := c.client.Unsubscribe(topic)
		if !unsub.WaitTimeout(c.timeout) || unsub.Error() != nil {
			c.logger.Warn("mqtt@query could not unsubscribe", zap.String("topic", topic), zap.Error(unsub.Error()))
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-received:
		return payload, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Disconnect announces the device offline and closes the session.
func (c *Client) Disconnect(timeout time.Duration) {
	if c.client.IsConnectionOpen() {
		token := c.client.Publish(c.topics.Availability(), 0, true, MQTT_PAYLOAD_OFFLINE)
		token.WaitTimeout(timeout)
	}
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

// messageHandler drops retained deliveries: the last retained command is recovered
// once by Query and must not be applied again on every (re)subscription.
func messageHandler(handler func([]byte)) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if msg.Retained() {
			return
		}
		handler(msg.Payload())
	}
}

func wait(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.New("timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.Transport = (*Client)(nil)
