package narratium

// InitializeRequest creates a game instance on the backend.
type InitializeRequest struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language"`
	Type     string `json:"type"`
}

// SetupRequest generates the opening scene for a character in a story framework.
type SetupRequest struct {
	GameID         string `json:"game_id"`
	StoryFramework string `json:"story_framework"`
	CharacterInfo  string `json:"character_info"`
}

// ActionRequest advances the story with the player's input.
type ActionRequest struct {
	GameID    string `json:"game_id"`
	UserInput string `json:"user_input"`
}

// GameResponse is the body of every non-streaming game endpoint.
type GameResponse struct {
	GameID      string   `json:"game_id"`
	Narrative   string   `json:"narrative"`
	NextPrompts []string `json:"next_prompts"`
	Success     bool     `json:"success"`
	Message     string   `json:"message,omitempty"`
}

// DeleteResponse is returned when a game is deleted.
type DeleteResponse struct {
	Message string `json:"message"`
}
