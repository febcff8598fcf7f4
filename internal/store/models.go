package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/avillagra/turnball/pkg/types"
)

// Match is the authoritative per-match record. TurnHolderID is nil
// until both formations are in and the coin flip has run.
type Match struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey"`
	HomeID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	AwayID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	Status       types.MatchStatus `gorm:"not null"`
	ScoreHome    int               `gorm:"not null"`
	ScoreAway    int               `gorm:"not null"`
	TurnHolderID *uuid.UUID        `gorm:"type:uuid"`
	CreatedAt    time.Time
}

// FormationChoice is one participant's starting layout. The composite
// primary key is the (match, participant) uniqueness constraint.
// StartOrder is 0 until assigned, then 1 or 2, and is never cleared.
type FormationChoice struct {
	MatchID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	ParticipantID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Formation     string    `gorm:"not null"`
	StartOrder    int       `gorm:"not null"`
	UpdatedAt     time.Time
}

// Turn is one appended ledger entry. The composite primary key on
// (match, sequence) is the last line of defense against a duplicate
// sequence assignment.
type Turn struct {
	MatchID       uuid.UUID             `gorm:"type:uuid;primaryKey"`
	Sequence      int                   `gorm:"primaryKey;autoIncrement:false"`
	ParticipantID uuid.UUID             `gorm:"type:uuid;not null"`
	Pieces        []types.PiecePosition `gorm:"serializer:json"`
	PlayedAt      time.Time
}

func (m *Match) info() *types.MatchInfo {
	holder := uuid.Nil
	if m.TurnHolderID != nil {
		holder = *m.TurnHolderID
	}
	return &types.MatchInfo{
		ID:         m.ID,
		Home:       m.HomeID,
		Away:       m.AwayID,
		Status:     m.Status,
		ScoreHome:  m.ScoreHome,
		ScoreAway:  m.ScoreAway,
		TurnHolder: holder,
		CreatedAt:  m.CreatedAt,
	}
}

func (c *FormationChoice) info() types.FormationInfo {
	return types.FormationInfo{
		Participant: c.ParticipantID,
		Formation:   c.Formation,
		StartOrder:  c.StartOrder,
	}
}

func (t *Turn) info() types.TurnInfo {
	pieces := make([]types.PiecePosition, len(t.Pieces))
	for i, p := range t.Pieces {
		// The acting participant owns every piece in its turn row,
		// whatever the stored tag says.
		pieces[i] = types.PiecePosition{ID: p.ID, Owner: t.ParticipantID, X: p.X, Y: p.Y}
	}
	return types.TurnInfo{
		Sequence:    t.Sequence,
		Participant: t.ParticipantID,
		Pieces:      pieces,
		PlayedAt:    t.PlayedAt,
	}
}
