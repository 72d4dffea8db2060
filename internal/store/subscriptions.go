package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DainoJung/brawl-star/internal/models"
	"github.com/redis/go-redis/v9"
)

// SubscriptionStore is the device registry. Endpoints are globally
// unique: re-subscribing with a known endpoint refreshes the key
// material and timestamp instead of inserting a duplicate.
type SubscriptionStore struct {
	redis *redis.Client
}

func NewSubscriptionStore(client *redis.Client) *SubscriptionStore {
	return &SubscriptionStore{redis: client}
}

// Endpoint URLs are long and contain characters redis keys tolerate
// badly, so the record key is the endpoint's sha256.
func subKey(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return "push:sub:" + hex.EncodeToString(sum[:])
}

func userSubsKey(userID string) string {
	return "push:user:" + userID
}

func (s *SubscriptionStore) Upsert(ctx context.Context, endpoint, userID, p256dh, auth string) error {
	now := time.Now().UTC()
	sub := models.PushSubscription{
		Endpoint:  endpoint,
		UserID:    userID,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := s.getByEndpoint(ctx, endpoint)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to read existing subscription: %w", err)
	}
	if existing != nil {
		sub.CreatedAt = existing.CreatedAt
		// A device can be handed to another account; drop the stale
		// index entry so the old user stops receiving this endpoint.
		if existing.UserID != userID {
			if err := s.redis.SRem(ctx, userSubsKey(existing.UserID), endpoint).Err(); err != nil {
				return fmt.Errorf("failed to reindex subscription: %w", err)
			}
		}
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := s.redis.Set(ctx, subKey(endpoint), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}
	if err := s.redis.SAdd(ctx, userSubsKey(userID), endpoint).Err(); err != nil {
		return fmt.Errorf("failed to index subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	endpoints, err := s.redis.SMembers(ctx, userSubsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]models.PushSubscription, 0, len(endpoints))
	for _, endpoint := range endpoints {
		sub, err := s.getByEndpoint(ctx, endpoint)
		if errors.Is(err, ErrNotFound) {
			// Stale index entry left behind by a concurrent removal.
			s.redis.SRem(ctx, userSubsKey(userID), endpoint)
			continue
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

// RemoveByEndpoint deletes a subscription regardless of owner. Removing
// an unknown endpoint is not an error; the push transport may report
// the same endpoint gone more than once.
func (s *SubscriptionStore) RemoveByEndpoint(ctx context.Context, endpoint string) error {
	sub, err := s.getByEndpoint(ctx, endpoint)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.redis.Del(ctx, subKey(endpoint)).Err(); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if err := s.redis.SRem(ctx, userSubsKey(sub.UserID), endpoint).Err(); err != nil {
		return fmt.Errorf("failed to deindex subscription: %w", err)
	}
	return nil
}

// RemoveByUserAndEndpoint is the explicit-unsubscribe path. Scoping by
// user keeps one user from tearing down another's registration with a
// guessed endpoint.
func (s *SubscriptionStore) RemoveByUserAndEndpoint(ctx context.Context, userID, endpoint string) error {
	sub, err := s.getByEndpoint(ctx, endpoint)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return nil
	}
	return s.RemoveByEndpoint(ctx, endpoint)
}

func (s *SubscriptionStore) getByEndpoint(ctx context.Context, endpoint string) (*models.PushSubscription, error) {
	raw, err := s.redis.Get(ctx, subKey(endpoint)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription: %w", err)
	}
	var sub models.PushSubscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &sub, nil
}
