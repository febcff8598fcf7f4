package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avillagra/turnball/pkg/types"
)

// CreateMatch returns the existing match for the pair (in either order)
// or inserts a fresh forming one.
func (s *Store) CreateMatch(ctx context.Context, home, away uuid.UUID) (*types.MatchInfo, error) {
	var m Match
	err := s.db.WithContext(ctx).
		Where("(home_id = ? AND away_id = ?) OR (home_id = ? AND away_id = ?)",
			home, away, away, home).
		First(&m).Error
	if err == nil {
		return m.info(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	m = Match{
		ID:        uuid.New(),
		HomeID:    home,
		AwayID:    away,
		Status:    types.StatusForming,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return m.info(), nil
}

func (s *Store) GetMatch(ctx context.Context, id uuid.UUID) (*types.MatchInfo, error) {
	var m Match
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m.info(), nil
}

// RecordGoal bumps the scorer's side of the score pair and returns the
// updated pair.
func (s *Store) RecordGoal(ctx context.Context, matchID, scorer uuid.UUID) (int, int, error) {
	var scoreHome, scoreAway int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Match
		if err := s.lock(tx, "UPDATE").First(&m, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		var column string
		switch scorer {
		case m.HomeID:
			column, scoreHome, scoreAway = "score_home", m.ScoreHome+1, m.ScoreAway
		case m.AwayID:
			column, scoreHome, scoreAway = "score_away", m.ScoreHome, m.ScoreAway+1
		default:
			return ErrNotParticipant
		}
		return tx.Model(&Match{}).Where("id = ?", matchID).
			Update(column, gorm.Expr(column+" + 1")).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return scoreHome, scoreAway, nil
}

// MatchesFor lists every match a participant is part of, newest first.
func (s *Store) MatchesFor(ctx context.Context, participant uuid.UUID) ([]types.MatchInfo, error) {
	var matches []Match
	err := s.db.WithContext(ctx).
		Where("home_id = ? OR away_id = ?", participant, participant).
		Order("created_at DESC").Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matchInfos(matches), nil
}

// PendingMatchesFor lists forming matches still waiting on this
// participant's formation.
func (s *Store) PendingMatchesFor(ctx context.Context, participant uuid.UUID) ([]types.MatchInfo, error) {
	chosen := s.db.Model(&FormationChoice{}).
		Select("match_id").Where("participant_id = ?", participant)

	var matches []Match
	err := s.db.WithContext(ctx).
		Where("status = ? AND (home_id = ? OR away_id = ?)",
			types.StatusForming, participant, participant).
		Where("id NOT IN (?)", chosen).
		Order("created_at DESC").Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matchInfos(matches), nil
}

func matchInfos(matches []Match) []types.MatchInfo {
	infos := make([]types.MatchInfo, len(matches))
	for i := range matches {
		infos[i] = *matches[i].info()
	}
	return infos
}
