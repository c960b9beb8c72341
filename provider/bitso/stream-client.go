package bitso

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"

	"github.com/mariorz/go-bitso-livebook/config"
	"github.com/mariorz/go-bitso-livebook/domain"
)

var logger = log.New(log.Writer(), "[bitso] ", log.LstdFlags)

const pingInterval = 20 * time.Second

type subscriptionEntry struct {
	ch              chan []byte
	done            chan struct{}
	subscriberCount int
}

// StreamClient multiplexes the single websocket connection over per-channel
// subscriptions. Reconnects are handled by recws; active subscriptions are
// re-sent through the SubscribeHandler after every redial.
type StreamClient struct {
	conn *recws.RecConn

	mu            sync.Mutex
	subscriptions map[string]*subscriptionEntry

	done     chan struct{}
	stopOnce sync.Once
}

func NewStreamClient() *StreamClient {
	return &StreamClient{
		subscriptions: make(map[string]*subscriptionEntry),
		done:          make(chan struct{}),
	}
}

func (c *StreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		NonVerbose:       true,
	}
	conn.SubscribeHandler = c.resubscribe
	conn.Dial(config.BitsoWSEndpoint, nil)

	c.conn = conn
	logger.Println("connected to the bitso stream websocket")

	go c.read()
	go c.keepAlive()
	return nil
}

// Subscribe registers interest in one channel of one book and sends the
// subscribe action when this is the first subscriber for that topic.
func (c *StreamClient) Subscribe(book, channel string) (*domain.Subscription[[]byte], error) {
	topic := topicKey(book, channel)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.subscriptions[topic]
	if ok {
		entry.subscriberCount++
	} else {
		entry = &subscriptionEntry{
			ch:              make(chan []byte),
			done:            make(chan struct{}),
			subscriberCount: 1,
		}
		c.subscriptions[topic] = entry

		logger.Println("subscribing to", topic)
		err := c.conn.WriteJSON(subscribeRequest{
			Action: "subscribe",
			Book:   book,
			Type:   channel,
		})
		if err != nil {
			delete(c.subscriptions, topic)
			return nil, fmt.Errorf("failed to send subscribe msg for topic=%s: %w", topic, err)
		}
	}

	return &domain.Subscription[[]byte]{
		Stream:      entry.ch,
		Unsubscribe: func() { c.unsubscribe(topic) },
		Topic:       topic,
	}, nil
}

// The exchange has no unsubscribe action; dropping the last subscriber only
// deregisters the topic locally. The frame channel is never closed from here:
// the read loop may be mid-send on it, so it signals through done instead and
// leaves the channel to the garbage collector.
func (c *StreamClient) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.subscriptions[topic]
	if !ok {
		return
	}
	if entry.subscriberCount > 1 {
		entry.subscriberCount--
		return
	}
	close(entry.done)
	delete(c.subscriptions, topic)
}

// resubscribe re-sends every active subscription after a reconnect.
func (c *StreamClient) resubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for topic := range c.subscriptions {
		book, channel := splitTopicKey(topic)
		logger.Println("resubscribing to", topic)
		if err := c.conn.WriteJSON(subscribeRequest{
			Action: "subscribe",
			Book:   book,
			Type:   channel,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *StreamClient) Close() error {
	c.stopOnce.Do(func() { close(c.done) })
	c.conn.Close()
	return nil
}

func (c *StreamClient) read() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			// recws redials in the background, just back off a bit
			time.Sleep(100 * time.Millisecond)
			continue
		}

		var envelope wsMessage
		if err := json.Unmarshal(msg, &envelope); err != nil {
			logger.Printf("dropping undecodable frame: %s", err)
			continue
		}

		if envelope.Type == channelKeepAlive {
			continue
		}
		if envelope.Action == "subscribe" {
			if config.DebugMode {
				logger.Printf("subscription ack: type=%s response=%s", envelope.Type, envelope.Response)
			}
			continue
		}

		c.dispatch(topicKey(envelope.Book, envelope.Type), msg)
	}
}

// dispatch hands a frame to the topic's subscriber. The subscriber may drop
// its subscription while the frame is in flight, so the send is guarded by
// the entry's done channel rather than blocking forever.
func (c *StreamClient) dispatch(topic string, msg []byte) {
	c.mu.Lock()
	entry, ok := c.subscriptions[topic]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case entry.ch <- msg:
	case <-entry.done:
	}
}

func (c *StreamClient) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.conn.IsConnected() {
				if err := c.conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
					logger.Printf("keep-alive ping failed: %s", err)
				}
			}
		}
	}
}

func topicKey(book, channel string) string {
	return book + "@" + channel
}

func splitTopicKey(topic string) (book, channel string) {
	for i := 0; i < len(topic); i++ {
		if topic[i] == '@' {
			return topic[:i], topic[i+1:]
		}
	}
	return topic, ""
}
