// Package domain contains core concepts of the game session system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

// Participant is one identified member of a room. Participants are never
// deleted, only deactivated, so log authorship stays valid after a disconnect.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AvatarStyle string `json:"avatar_style"`
	Active      bool   `json:"is_active"`
}
