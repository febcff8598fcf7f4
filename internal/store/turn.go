package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/avillagra/turnball/pkg/types"
)

// SubmitTurn appends one completed turn to the ledger. The turn-holder
// check and the sequence assignment run against the same locked match
// row, so two submissions for one holder serialize instead of both
// passing the check. A duplicate (match, sequence) insert surfaces as
// ErrSequenceConflict rather than being dropped.
func (s *Store) SubmitTurn(ctx context.Context, matchID uuid.UUID, req types.TurnRequest) (*types.TurnInfo, error) {
	var info types.TurnInfo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Match
		if err := s.lock(tx, "UPDATE").First(&m, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if m.Status != types.StatusPlaying {
			return ErrMatchNotPlaying
		}
		if m.TurnHolderID == nil || *m.TurnHolderID != req.Participant {
			return ErrOutOfTurn
		}

		var maxSeq int
		if err := tx.Model(&Turn{}).Where("match_id = ?", matchID).
			Select("COALESCE(MAX(sequence), 0)").Scan(&maxSeq).Error; err != nil {
			return err
		}

		// The submitter owns every piece it reports; client-supplied
		// owner tags are not trusted.
		pieces := make([]types.PiecePosition, len(req.Pieces))
		for i, p := range req.Pieces {
			pieces[i] = types.PiecePosition{ID: p.ID, Owner: req.Participant, X: p.X, Y: p.Y}
		}

		turn := Turn{
			MatchID:       matchID,
			Sequence:      maxSeq + 1,
			ParticipantID: req.Participant,
			Pieces:        pieces,
			PlayedAt:      s.clock.Now().UTC(),
		}
		if err := tx.Create(&turn).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSequenceConflict
			}
			return err
		}

		next := m.HomeID
		if req.Participant == m.HomeID {
			next = m.AwayID
		}
		if req.ExtraTurn {
			next = req.Participant
		}
		if err := tx.Model(&Match{}).Where("id = ?", matchID).
			Update("turn_holder_id", next).Error; err != nil {
			return err
		}

		info = turn.info()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("turn recorded",
		zap.String("match", matchID.String()),
		zap.Int("sequence", info.Sequence),
		zap.String("participant", req.Participant.String()),
		zap.Bool("extra_turn", req.ExtraTurn))
	return &info, nil
}

// TurnHistory returns the full ordered ledger for a match.
func (s *Store) TurnHistory(ctx context.Context, matchID uuid.UUID) ([]types.TurnInfo, error) {
	var turns []Turn
	err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).Order("sequence").Find(&turns).Error
	if err != nil {
		return nil, err
	}
	infos := make([]types.TurnInfo, len(turns))
	for i := range turns {
		infos[i] = turns[i].info()
	}
	return infos, nil
}
