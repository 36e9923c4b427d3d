package domain

import "time"

// Character is a roleplay persona owning zero or more scenes.
type Character struct {
	ID            string
	OwnerID       string
	Name          string
	Persona       string
	AvatarAssetID string
	ContentRating ContentRating
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Scene groups an ordered sequence of clips for one character.
type Scene struct {
	ID          string
	CharacterID string
	OwnerID     string
	Title       string
	Direction   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clip is one generated video segment inside a scene. When ParentClipID is
// set, the parent's extracted frame conditions this clip's start so visual
// continuity carries across generations (frame chaining).
type Clip struct {
	ID                string
	SceneID           string
	OwnerID           string
	Position          int
	Prompt            string
	JobID             string
	AssetID           string
	ParentClipID      string
	ExtractedFrameKey string
	DurationSeconds   int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ChatMessage is one roleplay exchange attached to a character.
type ChatMessage struct {
	ID          string
	CharacterID string
	OwnerID     string
	Role        string
	Content     string
	CreatedAt   time.Time
}
