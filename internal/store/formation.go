package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avillagra/turnball/pkg/types"
)

// SubmitFormation records a participant's starting layout and, on the
// submission that completes the pair, runs the coin flip and flips the
// match to playing. Resubmitting a formation may overwrite the layout
// but never re-runs the flip or touches the turn holder: StartOrder
// already being set is the guard.
func (s *Store) SubmitFormation(ctx context.Context, matchID uuid.UUID, req types.FormationRequest) (*types.FormationAck, error) {
	ack := &types.FormationAck{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Match
		if err := s.lock(tx, "UPDATE").First(&m, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if req.Participant != m.HomeID && req.Participant != m.AwayID {
			return ErrNotParticipant
		}

		choice := FormationChoice{
			MatchID:       matchID,
			ParticipantID: req.Participant,
			Formation:     req.Formation,
			UpdatedAt:     s.clock.Now().UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}, {Name: "participant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"formation", "updated_at"}),
		}).Create(&choice).Error; err != nil {
			return err
		}

		var choices []FormationChoice
		if err := tx.Where("match_id = ?", matchID).Order("participant_id").Find(&choices).Error; err != nil {
			return err
		}
		if len(choices) < 2 {
			// Recorded, waiting for the other side. No transition.
			return nil
		}

		for _, c := range choices {
			if c.StartOrder == 1 {
				ack.FirstHolder = c.ParticipantID
			}
		}
		if ack.FirstHolder != uuid.Nil {
			return nil
		}

		// Both choices are in and nobody is ordered yet: flip once.
		first, second := choices[0].ParticipantID, choices[1].ParticipantID
		if s.flip() {
			first, second = second, first
		}
		for i, uid := range []uuid.UUID{first, second} {
			if err := tx.Model(&FormationChoice{}).
				Where("match_id = ? AND participant_id = ?", matchID, uid).
				Update("start_order", i+1).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&Match{}).Where("id = ?", matchID).
			Updates(map[string]any{
				"status":         types.StatusPlaying,
				"turn_holder_id": first,
			}).Error; err != nil {
			return err
		}
		ack.Started = true
		ack.FirstHolder = first
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ack.Started {
		s.log.Info("match started",
			zap.String("match", matchID.String()),
			zap.String("first_holder", ack.FirstHolder.String()))
	}
	return ack, nil
}

// HasFormation reports whether the participant has a layout on record
// for the match. It gates websocket admission.
func (s *Store) HasFormation(ctx context.Context, matchID, participant uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&FormationChoice{}).
		Where("match_id = ? AND participant_id = ?", matchID, participant).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
