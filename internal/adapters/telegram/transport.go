package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alekspetrov/ideabot/internal/logging"
)

const (
	// SecretTokenHeader carries the secret registered with setWebhook.
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	pollTimeoutSeconds = 30
	maxWebhookBody     = 1 << 20
	webhookUpdateLimit = 2 * time.Minute
)

// UpdateSource is the polling half of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]*Update, error)
}

// Transport feeds updates to the Handler, by long polling or from a webhook.
type Transport struct {
	source  UpdateSource
	handler *Handler
	offset  int64 // next update ID to request
	mu      sync.Mutex
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewTransport creates a new Telegram transport layer.
func NewTransport(source UpdateSource, handler *Handler) *Transport {
	return &Transport{
		source:  source,
		handler: handler,
		stopCh:  make(chan struct{}),
	}
}

// StartPolling begins the long-polling loop in a goroutine.
func (t *Transport) StartPolling(ctx context.Context) {
	t.wg.Add(1)
	go t.pollLoop(ctx)

	t.startCleanup(ctx)
}

// StartWebhook only runs housekeeping; updates arrive via WebhookHandler.
func (t *Transport) StartWebhook(ctx context.Context) {
	t.startCleanup(ctx)
}

func (t *Transport) startCleanup(ctx context.Context) {
	t.wg.Add(1)
	go t.cleanupLoop(ctx)
}

// Stop stops polling and waits for in-flight updates.
func (t *Transport) Stop() {
	t.stopped.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}

// pollLoop processes updates sequentially, in delivery order.
func (t *Transport) pollLoop(ctx context.Context) {
	defer t.wg.Done()

	logging.WithComponent("telegram").Debug("Transport poll loop started")

	for {
		select {
		case <-ctx.Done():
			logging.WithComponent("telegram").Debug("Transport poll loop stopped")
			return
		case <-t.stopCh:
			logging.WithComponent("telegram").Debug("Transport poll loop stopped")
			return
		default:
			t.fetchAndProcess(ctx)
		}
	}
}

// cleanupLoop forgets idle rate limit buckets.
func (t *Transport) cleanupLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.handler.CleanupRateLimits(10 * time.Minute)
		}
	}
}

func (t *Transport) fetchAndProcess(ctx context.Context) {
	t.mu.Lock()
	offset := t.offset
	t.mu.Unlock()

	updates, err := t.source.GetUpdates(ctx, offset, pollTimeoutSeconds)
	if err != nil {
		if ctx.Err() == nil {
			logging.WithComponent("telegram").Warn("Error fetching updates", slog.Any("error", err))
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		case <-t.stopCh:
		}
		return
	}

	for _, update := range updates {
		t.handler.processUpdate(ctx, update)

		t.mu.Lock()
		if update.UpdateID >= t.offset {
			t.offset = update.UpdateID + 1
		}
		t.mu.Unlock()
	}
}

// WebhookHandler accepts updates pushed by Telegram. Requests without the
// matching secret header are rejected when secret is set. Each update is
// handled in its own goroutine and acknowledged immediately.
func (t *Transport) WebhookHandler(secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if secret != "" {
			got := r.Header.Get(SecretTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logging.WithComponent("telegram").Warn("Webhook request with bad secret token",
					slog.String("remote_addr", r.RemoteAddr))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		var update Update
		if err := json.Unmarshal(body, &update); err != nil {
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}

		// The request context ends when we reply.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), webhookUpdateLimit)
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer cancel()
			t.handler.processUpdate(ctx, &update)
		}()

		w.WriteHeader(http.StatusOK)
	})
}
