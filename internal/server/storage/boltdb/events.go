package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/trackmail/internal/models"
)

// RecordEvent appends a hit to the mail's event log
func (s *Storage) RecordEvent(ctx context.Context, event *models.TrackingEvent) error {
	if event.MailID == "" {
		return fmt.Errorf("event without mail id")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketEvents)
		if root == nil {
			return fmt.Errorf("events bucket not found")
		}

		bucket, err := root.CreateBucketIfNotExists([]byte(event.MailID))
		if err != nil {
			return fmt.Errorf("failed to create mail bucket: %w", err)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		if err := bucket.Put(sequenceKey(seq), data); err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}

		return nil
	})
}

// ListEvents returns the mail's hits in the order they were recorded.
// An unknown mail has an empty log.
func (s *Storage) ListEvents(ctx context.Context, mailID string) ([]*models.TrackingEvent, error) {
	events := make([]*models.TrackingEvent, 0)

	err := s.forEach(mailID, func(event *models.TrackingEvent) {
		events = append(events, event)
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// CountEvents aggregates the mail's hits per kind
func (s *Storage) CountEvents(ctx context.Context, mailID string) (models.EventCounts, error) {
	var counts models.EventCounts

	err := s.forEach(mailID, func(event *models.TrackingEvent) {
		switch event.Kind {
		case models.EventOpen:
			counts.Opens++
		case models.EventClick:
			counts.Clicks++
		}
	})
	if err != nil {
		return models.EventCounts{}, err
	}

	return counts, nil
}

// DeleteEvents drops the event logs of the given mails
func (s *Storage) DeleteEvents(ctx context.Context, mailIDs ...string) error {
	if len(mailIDs) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketEvents)
		if root == nil {
			return fmt.Errorf("events bucket not found")
		}

		for _, id := range mailIDs {
			if root.Bucket([]byte(id)) == nil {
				continue
			}
			if err := root.DeleteBucket([]byte(id)); err != nil {
				return fmt.Errorf("failed to delete events of %s: %w", id, err)
			}
		}

		return nil
	})
}

func (s *Storage) forEach(mailID string, fn func(*models.TrackingEvent)) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketEvents)
		if root == nil {
			return fmt.Errorf("events bucket not found")
		}

		bucket := root.Bucket([]byte(mailID))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var event models.TrackingEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			fn(&event)
			return nil
		})
	})
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
