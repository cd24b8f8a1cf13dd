package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Glassolution/berry/internal/models"
)

// DefaultNotificationPrefs applies when nothing has been saved yet.
var DefaultNotificationPrefs = models.NotificationPrefs{
	Enabled: false,
	Hour:    12,
	Minute:  0,
	Title:   "Hora de registrar sua refeição 🍽",
}

// NotificationPrefs reads the scalar notification keys, falling back to the
// defaults key by key.
func (s *Store) NotificationPrefs(ctx context.Context) (models.NotificationPrefs, error) {
	p := DefaultNotificationPrefs
	var rerr error
	err := s.do(ctx, func(*state) {
		rerr = errors.Join(
			s.readScalar(ctx, KeyNotifyEnabled, &p.Enabled),
			s.readScalar(ctx, KeyNotifyHour, &p.Hour),
			s.readScalar(ctx, KeyNotifyMinute, &p.Minute),
			s.readScalar(ctx, KeyNotifyTitle, &p.Title),
		)
	})
	if err != nil {
		return DefaultNotificationPrefs, err
	}
	if rerr != nil {
		return DefaultNotificationPrefs, rerr
	}
	return p, nil
}

// SetNotificationPrefs validates and stores p.
func (s *Store) SetNotificationPrefs(ctx context.Context, p models.NotificationPrefs) error {
	if err := s.check(p); err != nil {
		return err
	}
	var perr error
	err := s.do(ctx, func(*state) {
		perr = errors.Join(
			s.persist(ctx, KeyNotifyEnabled, p.Enabled),
			s.persist(ctx, KeyNotifyHour, p.Hour),
			s.persist(ctx, KeyNotifyMinute, p.Minute),
			s.persist(ctx, KeyNotifyTitle, p.Title),
		)
	})
	if err != nil {
		return err
	}
	return perr
}

// ResetNotificationPrefs drops the stored keys so the defaults apply again.
func (s *Store) ResetNotificationPrefs(ctx context.Context) error {
	var derr error
	err := s.do(ctx, func(*state) {
		for _, key := range []string{KeyNotifyEnabled, KeyNotifyHour, KeyNotifyMinute, KeyNotifyTitle} {
			if err := s.kv.Delete(ctx, key); err != nil {
				derr = errors.Join(derr, fmt.Errorf("delete %s: %w", key, err))
			}
		}
	})
	if err != nil {
		return err
	}
	return derr
}

func (s *Store) readScalar(ctx context.Context, key string, dst any) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
