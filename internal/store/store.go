// Package store owns the persisted match state: the match record, the
// formation registry and the append-only turn ledger, plus the two
// transactions that mutate them and the snapshot read that assembles
// them into one consistent payload.
package store

import (
	"fmt"
	"math/rand"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type Store struct {
	db    *gorm.DB
	clock clockwork.Clock
	log   *zap.Logger
	flip  func() bool
	// sqlite (used in tests) has a single writer and no FOR UPDATE
	// syntax; row locks only make sense on postgres.
	rowLocks bool
}

type Option func(*Store)

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithCoinFlip replaces the start-order coin flip, so tests can pin who
// goes first.
func WithCoinFlip(f func() bool) Option {
	return func(s *Store) { s.flip = f }
}

// New wraps an already-open gorm handle. The handle must have
// TranslateError enabled so unique violations surface as
// gorm.ErrDuplicatedKey.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:       db,
		clock:    clockwork.NewRealClock(),
		log:      zap.NewNop(),
		flip:     func() bool { return rand.Intn(2) == 0 },
		rowLocks: db.Dialector.Name() == "postgres",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to postgres, migrates the schema and returns a ready
// store.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Match{}, &FormationChoice{}, &Turn{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) lock(tx *gorm.DB, strength string) *gorm.DB {
	if !s.rowLocks {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: strength})
}
