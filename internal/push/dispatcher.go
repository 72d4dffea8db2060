// Package push delivers Web Push messages (RFC 8291 encryption, RFC
// 8292 VAPID) and classifies transport outcomes. The dispatcher also
// owns endpoint staleness: when the push service reports an endpoint
// gone, the dispatcher removes the subscription itself.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/DainoJung/brawl-star/internal/config"
	"github.com/DainoJung/brawl-star/internal/models"
	"github.com/DainoJung/brawl-star/pkg/circuitbreaker"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrMissingVAPIDKeys means the signing identity was not configured.
// No delivery is attempted without it.
var ErrMissingVAPIDKeys = errors.New("VAPID keys are not configured")

// Outcome classifies one delivery attempt to one endpoint.
type Outcome int

const (
	// OutcomeDelivered: the push service accepted the message.
	OutcomeDelivered Outcome = iota
	// OutcomeTransient: network error, breaker open or a retryable
	// status. The subscription is kept; the next due time retries.
	OutcomeTransient
	// OutcomePermanent: the endpoint is gone and has been removed from
	// the registry.
	OutcomePermanent
)

// Registry is the slice of the subscription store the dispatcher needs.
type Registry interface {
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	RemoveByEndpoint(ctx context.Context, endpoint string) error
}

// envelope is the message the service worker receives.
type envelope struct {
	Title              string              `json:"title"`
	Body               string              `json:"body"`
	Icon               string              `json:"icon"`
	Badge              string              `json:"badge"`
	Tag                string              `json:"tag"`
	Data               models.AlarmPayload `json:"data"`
	RequireInteraction bool                `json:"requireInteraction"`
	Vibrate            []int               `json:"vibrate"`
}

// newEnvelope fixes the presentation fields every message carries; only
// the text, payload and deduplication tag vary per send.
func newEnvelope(title, body string, payload models.AlarmPayload, tag string) envelope {
	return envelope{
		Title:              title,
		Body:               body,
		Icon:               "/icon-192.png",
		Badge:              "/icon-192.png",
		Tag:                tag,
		Data:               payload,
		RequireInteraction: true,
		Vibrate:            []int{200, 100, 200, 100, 200},
	}
}

type Dispatcher struct {
	registry Registry
	cfg      config.PushConfig
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
	log      *zap.Logger
}

func NewDispatcher(registry Registry, cfg config.PushConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		cfg:      cfg,
		client: &http.Client{
			Timeout: cfg.SendTimeout,
		},
		cb:  circuitbreaker.NewCircuitBreaker("web-push"),
		log: log.Named("push_dispatcher"),
	}
}

// Send encrypts one message to one subscription and classifies the
// result. A gone endpoint (404/410) is pruned from the registry before
// returning. The only error returned is the missing-keys configuration
// fault; transport failures are outcomes, not errors.
func (d *Dispatcher) Send(ctx context.Context, sub models.PushSubscription, title, body string, payload models.AlarmPayload, tag string) (Outcome, error) {
	if d.cfg.VAPIDPublicKey == "" || d.cfg.VAPIDPrivateKey == "" {
		return OutcomeTransient, ErrMissingVAPIDKeys
	}

	raw, err := json.Marshal(newEnvelope(title, body, payload, tag))
	if err != nil {
		return OutcomeTransient, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	log := d.log.With(zap.String("user_id", sub.UserID), zap.String("endpoint", truncate(sub.Endpoint, 50)))

	result, err := d.cb.Execute(func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()

		resp, err := webpush.SendNotificationWithContext(sctx, raw, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			HTTPClient:      d.client,
			Subscriber:      d.cfg.Subscriber,
			TTL:             d.cfg.TTL,
			VAPIDPublicKey:  d.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: d.cfg.VAPIDPrivateKey,
		})
		if err != nil {
			return nil, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp.StatusCode, nil
	})
	if err != nil {
		log.Warn("push delivery failed", zap.Error(err))
		return OutcomeTransient, nil
	}

	status := result.(int)
	switch {
	case status >= 200 && status < 300:
		log.Debug("push delivered", zap.Int("status", status))
		return OutcomeDelivered, nil
	case status == http.StatusGone || status == http.StatusNotFound:
		log.Info("subscription expired, removing", zap.Int("status", status))
		if err := d.registry.RemoveByEndpoint(ctx, sub.Endpoint); err != nil {
			log.Error("failed to remove expired subscription", zap.Error(err))
		}
		return OutcomePermanent, nil
	default:
		log.Warn("push rejected", zap.Int("status", status))
		return OutcomeTransient, nil
	}
}

// SendToUser delivers one message to every device the user currently
// has registered. The registry is read fresh at call time since expiry
// cleanup may have run since the caller last looked. A user with no
// subscriptions yields {0,0} without touching the transport.
func (d *Dispatcher) SendToUser(ctx context.Context, userID, title, body string, payload models.AlarmPayload, tag string) (models.DispatchResult, error) {
	var result models.DispatchResult

	if d.cfg.VAPIDPublicKey == "" || d.cfg.VAPIDPrivateKey == "" {
		return result, ErrMissingVAPIDKeys
	}

	subs, err := d.registry.ListByUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("failed to list subscriptions for user %s: %w", userID, err)
	}

	for _, sub := range subs {
		outcome, err := d.Send(ctx, sub, title, body, payload, tag)
		if err != nil {
			return result, err
		}
		if outcome == OutcomeDelivered {
			result.Sent++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
