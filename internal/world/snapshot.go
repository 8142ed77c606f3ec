package world

import (
	"encoding/json"
	"fmt"
	"os"
)

// Snapshot is an in-memory View, used for replayed feeds and tests.
type Snapshot struct {
	TerritoryID uint32   `json:"territory"`
	SceneID     int      `json:"scene"`
	PlayerID    uint64   `json:"player"`
	PartyIDs    []uint64 `json:"party"`
	Actors      []*Actor `json:"actors"`
}

var _ View = (*Snapshot)(nil)

func (s *Snapshot) Territory() uint32 { return s.TerritoryID }

func (s *Snapshot) Scene() int { return s.SceneID }

func (s *Snapshot) Objects() []*Actor { return s.Actors }

func (s *Snapshot) byID(id uint64) *Actor {
	for _, a := range s.Actors {
		if a != nil && a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Snapshot) Player() *Actor {
	if s.PlayerID == 0 {
		return nil
	}
	return s.byID(s.PlayerID)
}

func (s *Snapshot) Party() []*Actor {
	out := make([]*Actor, 0, len(s.PartyIDs))
	for _, id := range s.PartyIDs {
		if a := s.byID(id); a != nil {
			out = append(out, a)
		}
	}
	return out
}

// LoadSnapshots reads a JSON array of snapshots from path.
func LoadSnapshots(path string) ([]*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world feed: %w", err)
	}
	var frames []*Snapshot
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("failed to parse world feed: %w", err)
	}
	return frames, nil
}
