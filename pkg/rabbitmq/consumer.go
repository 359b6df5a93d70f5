/**
 * @description
 * Topic-exchange consumer for the projection event stream. The queue is bound
 * with the configured routing patterns and every delivery is passed to a
 * handler returning an ack decision: true acknowledges, false re-queues.
 *
 * @notes
 * - Bindings may use AMQP topic wildcards. Deliveries carry the publisher's
 *   concrete routing key, so lookup falls back to the pattern bindings when
 *   no exact handler matches.
 */

package rabbitmq

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

func NewConsumer(amqpURL string) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Bound the number of unacked deliveries so redelivered batches cannot
	// flood the projections.
	if err := ch.Qos(32, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch}, nil
}

// ConsumeWithBindings declares the exchange and queue, binds every routing
// pattern and starts delivering to the handlers. The call returns once the
// consume loop is running.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]func([]byte) bool) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	handlers := make(map[string]func([]byte) bool)
	var patterns []patternHandler
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if strings.ContainsAny(routingKey, "*#") {
			patterns = append(patterns, patternHandler{pattern: routingKey, handle: handler})
		}
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			handler := resolveHandler(handlers, patterns, d.RoutingKey)
			if handler == nil {
				log.Printf("No handler for routing key %s; acknowledging to drop", d.RoutingKey)
				d.Ack(false)
				continue
			}
			if handler(d.Body) {
				d.Ack(false)
			} else {
				log.Printf("Handler for routing key %s failed; re-queuing", d.RoutingKey)
				d.Nack(false, true)
			}
		}
	}()

	return nil
}

type patternHandler struct {
	pattern string
	handle  func([]byte) bool
}

func resolveHandler(handlers map[string]func([]byte) bool, patterns []patternHandler, routingKey string) func([]byte) bool {
	if handler, ok := handlers[routingKey]; ok {
		return handler
	}
	for _, p := range patterns {
		if matchTopic(p.pattern, routingKey) {
			return p.handle
		}
	}
	return nil
}

// matchTopic implements AMQP topic matching: "*" matches exactly one word,
// "#" matches zero or more.
func matchTopic(pattern, routingKey string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(pattern, words []string) bool {
	if len(pattern) == 0 {
		return len(words) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(words); i++ {
			if matchWords(pattern[1:], words[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(words) > 0 && matchWords(pattern[1:], words[1:])
	default:
		return len(words) > 0 && pattern[0] == words[0] && matchWords(pattern[1:], words[1:])
	}
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
