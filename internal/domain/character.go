package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Race is a playable race.
type Race int

const (
	RaceUnspecified Race = iota
	RaceHuman
	RaceElf
	RaceOrc
)

var raceNames = map[Race]string{
	RaceUnspecified: "unspecified",
	RaceHuman:       "human",
	RaceElf:         "elf",
	RaceOrc:         "orc",
}

func (r Race) String() string {
	if s, ok := raceNames[r]; ok {
		return s
	}
	return fmt.Sprintf("race(%d)", int(r))
}

// ParseRace accepts the names returned by Race.String, case-insensitively.
func ParseRace(s string) (Race, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range raceNames {
		if name == s {
			return r, nil
		}
	}
	return RaceUnspecified, fmt.Errorf("unknown race %q", s)
}

// Character is a player character owned by an account.
type Character struct {
	ID   uuid.UUID
	Name string
	Race Race
}

// CharacterMeta is the JSON form used by the lobby.
type CharacterMeta struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Race string `json:"race"`
}

// ToCharacter converts CharacterMeta to a Character.
func (m CharacterMeta) ToCharacter() (Character, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return Character{}, fmt.Errorf("character %q: %w", m.Name, err)
	}
	race, err := ParseRace(m.Race)
	if err != nil {
		return Character{}, fmt.Errorf("character %q: %w", m.Name, err)
	}
	return Character{ID: id, Name: m.Name, Race: race}, nil
}

// ToMeta converts a Character to CharacterMeta for JSON serialization.
func (c Character) ToMeta() CharacterMeta {
	return CharacterMeta{ID: c.ID.String(), Name: c.Name, Race: c.Race.String()}
}
