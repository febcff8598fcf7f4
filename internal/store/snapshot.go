package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avillagra/turnball/pkg/types"
)

// BuildSnapshot assembles the match record, formation registry and turn
// ledger into one payload. The match row is share-locked for the read:
// every mutator takes the same row exclusively first, so the three
// reads can never interleave with a half-committed transaction. With
// fewer than two formations on record the snapshot is formation-only:
// empty turn list, Nil holder, honest status.
func (s *Store) BuildSnapshot(ctx context.Context, matchID uuid.UUID) (*types.Snapshot, error) {
	var snap *types.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Match
		if err := s.lock(tx, "SHARE").First(&m, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		var choices []FormationChoice
		if err := tx.Where("match_id = ?", matchID).Order("participant_id").Find(&choices).Error; err != nil {
			return err
		}
		formations := make([]types.FormationInfo, len(choices))
		for i := range choices {
			formations[i] = choices[i].info()
		}

		snap = &types.Snapshot{
			MatchID:        m.ID,
			Home:           m.HomeID,
			Away:           m.AwayID,
			Status:         m.Status,
			ScoreHome:      m.ScoreHome,
			ScoreAway:      m.ScoreAway,
			Formations:     formations,
			Turns:          []types.TurnInfo{},
			NextTurnHolder: uuid.Nil,
		}
		if len(choices) < 2 {
			return nil
		}

		var turns []Turn
		if err := tx.Where("match_id = ?", matchID).Order("sequence").Find(&turns).Error; err != nil {
			return err
		}
		snap.Turns = make([]types.TurnInfo, len(turns))
		for i := range turns {
			snap.Turns[i] = turns[i].info()
		}
		if len(turns) > 0 {
			snap.LastSequence = turns[len(turns)-1].Sequence
		}
		if m.TurnHolderID != nil {
			snap.NextTurnHolder = *m.TurnHolderID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
