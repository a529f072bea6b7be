package eventbus

type ChatEventType string

const (
	ChatEventTurnCompleted     ChatEventType = "TurnCompleted"
	ChatEventTurnFailed        ChatEventType = "TurnFailed"
	ChatEventSessionConfigured ChatEventType = "SessionConfigured"
	ChatEventSessionReset      ChatEventType = "SessionReset"
)

type ChatEvent struct {
	Type      ChatEventType
	SessionID string
	ThreadID  string
	Mode      string // retrieve, generate
	Documents int    // 本轮检索到的片段数
	Source    string // SessionConfigured: 文档名
	Chunks    int    // SessionConfigured: 片段数
	Err       error
}

type ChatEventHandler = Handler[ChatEvent]
type ChatEventBus = Bus[ChatEventType, ChatEvent]

func NewChatEventBus() *ChatEventBus {
	return NewBus[ChatEventType, ChatEvent]()
}
