package realtime

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
)

var ErrSubscriberNotFound = errors.New("realtime subscriber not found")

// Config for the broadcast engine; read from the environment by the bootstrap
// layer only.
type Config struct {
	Workers    int
	RetryLimit int
	QueueSize  int
	Enabled    bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	return c
}

// Engine fans session status events out to registered subscriber URLs through
// a bounded queue and a fixed worker pool. It implements session.Publisher;
// Publish never blocks — when the queue is full the event is dropped and
// logged, because a missed real-time update must never stall a status write.
type Engine struct {
	cfg        Config
	httpClient *http.Client
	queue      chan *deliveryTask
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu          sync.RWMutex
	subscribers map[string]Subscriber
}

type deliveryTask struct {
	subscriber Subscriber
	event      session.StatusEvent
}

func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		queue:       make(chan *deliveryTask, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[string]Subscriber),
	}

	if cfg.Enabled {
		for i := 0; i < cfg.Workers; i++ {
			engine.wg.Add(1)
			go engine.worker()
		}
	}

	return engine
}

func (e *Engine) Shutdown() {
	e.cancel()
	close(e.queue)
	e.wg.Wait()
}

// Subscribe registers a callback URL. Only public HTTPS endpoints are
// accepted; an empty events filter receives every event type.
func (e *Engine) Subscribe(rawURL string, secret string, events []string) (Subscriber, error) {
	if err := validateCallbackURL(rawURL); err != nil {
		return Subscriber{}, err
	}
	sub := Subscriber{
		ID:        uuid.NewString(),
		URL:       rawURL,
		Secret:    secret,
		Events:    events,
		CreatedAt: time.Now(),
	}
	e.mu.Lock()
	e.subscribers[sub.ID] = sub
	e.mu.Unlock()
	return sub, nil
}

func (e *Engine) Unsubscribe(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subscribers[id]; !ok {
		return ErrSubscriberNotFound
	}
	delete(e.subscribers, id)
	return nil
}

func (e *Engine) ListSubscribers() []Subscriber {
	e.mu.RLock()
	out := make([]Subscriber, 0, len(e.subscribers))
	for _, sub := range e.subscribers {
		out = append(out, sub)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Publish implements session.Publisher.
func (e *Engine) Publish(event session.StatusEvent) {
	if !e.cfg.Enabled {
		return
	}

	e.mu.RLock()
	targets := make([]Subscriber, 0, len(e.subscribers))
	for _, sub := range e.subscribers {
		if sub.matches(event.EventType) {
			targets = append(targets, sub)
		}
	}
	e.mu.RUnlock()

	for _, sub := range targets {
		select {
		case e.queue <- &deliveryTask{subscriber: sub, event: event}:
		default:
			log.Print(nil).
				WithField("subscriber", sub.ID).
				WithField("event", event.EventType).
				Warn("Realtime queue full, dropping event")
		}
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case task, ok := <-e.queue:
			if !ok {
				return
			}
			e.deliver(task)
		}
	}
}

func (e *Engine) deliver(task *deliveryTask) {
	payload, err := json.Marshal(task.event)
	if err != nil {
		log.Print(nil).WithError(err).Error("Failed to marshal realtime event")
		return
	}

	signature := signPayload(payload, task.subscriber.Secret)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.RetryLimit; attempt++ {
		req, err := http.NewRequestWithContext(e.ctx, http.MethodPost, task.subscriber.URL, bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			break
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Signature", signature)
		req.Header.Set("X-Webhook-Event", task.event.EventType)
		req.Header.Set("User-Agent", "WhatsApp-Session-Registry/1.0")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < e.cfg.RetryLimit {
				time.Sleep(time.Duration(attempt*2) * time.Second)
			}
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}

		lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		if attempt < e.cfg.RetryLimit {
			time.Sleep(time.Duration(attempt*2) * time.Second)
		}
	}

	if lastErr != nil {
		log.Print(nil).
			WithField("subscriber", task.subscriber.ID).
			WithField("event", task.event.EventType).
			Warn("Realtime delivery failed: " + lastErr.Error())
	}
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validateCallbackURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	if u.Scheme != "https" {
		return fmt.Errorf("only HTTPS URLs are allowed")
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "0.0.0.0" ||
		strings.HasPrefix(host, "192.168.") || strings.HasPrefix(host, "10.") || strings.HasPrefix(host, "172.") {
		return fmt.Errorf("private/local network URLs are not allowed")
	}

	return nil
}
