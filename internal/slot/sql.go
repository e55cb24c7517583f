package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/lendcart/pkg/db/models"
)

const defaultPollInterval = 2 * time.Second

type sqlPinger interface {
	Ping(ctx context.Context) error
}

// SQLSlot keeps the document in the cart_slots table. Other contexts notice
// writes by polling the revision column.
type SQLSlot struct {
	conn     *gorm.DB
	pinger   sqlPinger
	name     string
	writer   string
	interval time.Duration
	now      func() time.Time
}

// NewSQL builds a slot on conn. pinger may be nil.
func NewSQL(conn *gorm.DB, pinger sqlPinger, name, writer string, interval time.Duration) (*SQLSlot, error) {
	if conn == nil {
		return nil, errors.New("db connection required for slot")
	}
	if name == "" {
		return nil, errors.New("slot name is required")
	}
	if writer == "" {
		return nil, errors.New("writer id is required")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &SQLSlot{
		conn:     conn,
		pinger:   pinger,
		name:     name,
		writer:   writer,
		interval: interval,
		now:      time.Now,
	}, nil
}

func (s *SQLSlot) Name() string { return s.name }

func (s *SQLSlot) Read(ctx context.Context) ([]byte, error) {
	row, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return []byte(row.Payload), nil
}

// Write upserts the row and bumps its revision.
func (s *SQLSlot) Write(ctx context.Context, payload []byte) error {
	row := models.CartSlot{
		Name:      s.name,
		Payload:   string(payload),
		Revision:  1,
		Writer:    s.writer,
		UpdatedAt: s.now().UTC(),
	}
	err := s.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"payload":    row.Payload,
			"revision":   gorm.Expr("cart_slots.revision + 1"),
			"writer":     row.Writer,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write slot %s: %w", s.name, err)
	}
	return nil
}

// Watch polls the revision and reports advances made by other writers.
func (s *SQLSlot) Watch(ctx context.Context) (<-chan Notice, error) {
	row, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch slot %s: %w", s.name, err)
	}
	var seen int64
	if row != nil {
		seen = row.Revision
	}

	out := make(chan Notice)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			row, err := s.load(ctx)
			if err != nil || row == nil || row.Revision <= seen {
				continue
			}
			seen = row.Revision
			if row.Writer == s.writer {
				continue
			}
			select {
			case out <- Notice{Writer: row.Writer}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *SQLSlot) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger.Ping(ctx)
}

func (s *SQLSlot) load(ctx context.Context) (*models.CartSlot, error) {
	var row models.CartSlot
	err := s.conn.WithContext(ctx).Where("name = ?", s.name).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read slot %s: %w", s.name, err)
	}
	return &row, nil
}
