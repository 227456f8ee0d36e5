// ABOUTME: Participant roster loading from TOML files
// ABOUTME: Defines which AI participants sit in every session's team

package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// RosterParticipant is one AI seat defined in a roster file.
type RosterParticipant struct {
	Name          string `toml:"name"`
	SystemMessage string `toml:"system_message"`
}

// Roster is the set of AI participants loaded from a TOML file.
type Roster struct {
	Participants []RosterParticipant `toml:"participants"`
}

// DefaultRoster returns the built-in two-seat roster used when no roster
// file is configured.
func DefaultRoster() *Roster {
	return &Roster{
		Participants: []RosterParticipant{
			{
				Name:          "assistant",
				SystemMessage: "You are a helpful AI assistant.",
			},
			{
				Name:          "yoda",
				SystemMessage: "Repeat the same message in the tone of Yoda.",
			},
		},
	}
}

// LoadRoster reads a roster from a TOML file. An empty path yields the
// default roster.
func LoadRoster(path string) (*Roster, error) {
	if path == "" {
		return DefaultRoster(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster file: %w", err)
	}

	var roster Roster
	if err := toml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parsing roster file: %w", err)
	}

	if len(roster.Participants) == 0 {
		return nil, fmt.Errorf("roster has no participants")
	}

	seen := make(map[string]bool, len(roster.Participants))
	for i, p := range roster.Participants {
		if p.Name == "" {
			return nil, fmt.Errorf("participant %d has no name", i)
		}
		if p.Name == "user" || p.Name == "system" {
			return nil, fmt.Errorf("participant name %q is reserved", p.Name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate participant name %q", p.Name)
		}
		seen[p.Name] = true
	}

	return &roster, nil
}
