package session

// NoticeKind identifies a user-visible notice.
type NoticeKind string

const (
	NoticeChatUnavailable   NoticeKind = "chat_unavailable"
	NoticeAgentDisconnected NoticeKind = "agent_disconnected"
	NoticeConnectFailed     NoticeKind = "connect_failed"
	NoticeCaptionsFailed    NoticeKind = "captions_failed"
)

// Notice is a toast-style message pushed to the viewer.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

// NoticeFor returns the canonical wording for kind.
func NoticeFor(kind NoticeKind) Notice {
	switch kind {
	case NoticeChatUnavailable:
		return Notice{Kind: kind, Title: "Chat Unavailable", Description: "Unable to connect right now. Please try again later."}
	case NoticeAgentDisconnected:
		return Notice{Kind: kind, Title: "Agent Disconnected", Description: "The AI agent has unexpectedly left the conversation. Please try again."}
	case NoticeConnectFailed:
		return Notice{Kind: kind, Title: "Connection Failed", Description: "Could not start the voice session."}
	case NoticeCaptionsFailed:
		return Notice{Kind: kind, Title: "Captions Unavailable", Description: "Failed to load captions"}
	default:
		return Notice{Kind: kind}
	}
}
