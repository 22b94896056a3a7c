package session

// ChatbotData is forwarded to the agent as room participant metadata. It never
// carries model provider credentials.
type ChatbotData struct {
	Instructions     string  `json:"instructions"`
	SessionConfig    Config  `json:"sessionConfig"`
	SelectedPresetID *string `json:"selectedPresetId"`
}

// ConnectionDetails describes the room the client should (or should no
// longer) be connected to.
type ConnectionDetails struct {
	WSURL         string `json:"wsUrl"`
	Token         string `json:"token"`
	ShouldConnect bool   `json:"shouldConnect"`
	Voice         string `json:"voice"`
}

// Credentials is what a token source hands back for one connect attempt.
type Credentials struct {
	AccessToken string `json:"accessToken"`
	URL         string `json:"url"`
	Room        string `json:"room,omitempty"`
	Identity    string `json:"identity,omitempty"`
}
