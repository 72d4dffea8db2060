package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/DainoJung/brawl-star/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MedicineStore persists medication records. The scheduler only ever
// calls ListAll; the CRUD surface backs the medicine API.
type MedicineStore struct {
	redis *redis.Client
}

func NewMedicineStore(client *redis.Client) *MedicineStore {
	return &MedicineStore{redis: client}
}

func medicineKey(id string) string {
	return "medicine:" + id
}

func userMedicinesKey(userID string) string {
	return "medicines:user:" + userID
}

const allMedicinesKey = "medicines:all"

func (s *MedicineStore) Create(ctx context.Context, req models.MedicineCreateRequest) (*models.Medicine, error) {
	now := time.Now().UTC()
	med := models.Medicine{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Name:         req.Name,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		Timing:       req.Timing,
		Times:        req.Times,
		Days:         req.Days,
		Color:        req.Color,
		Confidence:   req.Confidence,
		OriginalText: req.OriginalText,
		Warning:      req.Warning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.write(ctx, &med); err != nil {
		return nil, err
	}
	if err := s.redis.SAdd(ctx, allMedicinesKey, med.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to index medicine: %w", err)
	}
	if err := s.redis.SAdd(ctx, userMedicinesKey(med.UserID), med.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to index medicine for user: %w", err)
	}
	return &med, nil
}

func (s *MedicineStore) Get(ctx context.Context, id string) (*models.Medicine, error) {
	raw, err := s.redis.Get(ctx, medicineKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read medicine: %w", err)
	}
	var med models.Medicine
	if err := json.Unmarshal(raw, &med); err != nil {
		return nil, fmt.Errorf("failed to unmarshal medicine: %w", err)
	}
	return &med, nil
}

// ListByUser returns the user's medicines newest first.
func (s *MedicineStore) ListByUser(ctx context.Context, userID string) ([]models.Medicine, error) {
	meds, err := s.listSet(ctx, userMedicinesKey(userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(meds, func(i, j int) bool {
		return meds[i].CreatedAt.After(meds[j].CreatedAt)
	})
	return meds, nil
}

// ListAll is the schedule-store read taken once per scheduler tick.
// Ordered oldest first so a user's grouped alarms come out stable
// across ticks.
func (s *MedicineStore) ListAll(ctx context.Context) ([]models.Medicine, error) {
	meds, err := s.listSet(ctx, allMedicinesKey)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(meds, func(i, j int) bool {
		return meds[i].CreatedAt.Before(meds[j].CreatedAt)
	})
	return meds, nil
}

func (s *MedicineStore) Update(ctx context.Context, id string, req models.MedicineUpdateRequest) (*models.Medicine, error) {
	med, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		med.Name = *req.Name
	}
	if req.Dosage != nil {
		med.Dosage = *req.Dosage
	}
	if req.Frequency != nil {
		med.Frequency = *req.Frequency
	}
	if req.Timing != nil {
		med.Timing = *req.Timing
	}
	if req.Times != nil {
		med.Times = *req.Times
	}
	if req.Days != nil {
		med.Days = *req.Days
	}
	if req.Color != nil {
		med.Color = *req.Color
	}
	med.UpdatedAt = time.Now().UTC()
	if err := s.write(ctx, med); err != nil {
		return nil, err
	}
	return med, nil
}

func (s *MedicineStore) Delete(ctx context.Context, id string) error {
	med, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.redis.Del(ctx, medicineKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete medicine: %w", err)
	}
	s.redis.SRem(ctx, allMedicinesKey, id)
	s.redis.SRem(ctx, userMedicinesKey(med.UserID), id)
	return nil
}

func (s *MedicineStore) write(ctx context.Context, med *models.Medicine) error {
	raw, err := json.Marshal(med)
	if err != nil {
		return fmt.Errorf("failed to marshal medicine: %w", err)
	}
	if err := s.redis.Set(ctx, medicineKey(med.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store medicine: %w", err)
	}
	return nil
}

func (s *MedicineStore) listSet(ctx context.Context, key string) ([]models.Medicine, error) {
	ids, err := s.redis.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	meds := make([]models.Medicine, 0, len(ids))
	for _, id := range ids {
		med, err := s.Get(ctx, id)
		if err == ErrNotFound {
			s.redis.SRem(ctx, key, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		meds = append(meds, *med)
	}
	return meds, nil
}
