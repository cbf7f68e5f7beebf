package appevents

// AppEvent is a marker interface for events sent from the TUI to an App's logic controller.
// It uses an unexported method so that only types embedding Event can satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded in event types to satisfy AppEvent.
type Event struct{}

func (Event) isAppEvent() {}

// AppUIMessage is a marker interface for messages sent from an App to the TUI.
type AppUIMessage interface {
	isUIMessage()
}

// UIMessage is embedded in message types to satisfy AppUIMessage.
type UIMessage struct{}

func (UIMessage) isUIMessage() {}

// ErrorMsg surfaces a failed action to the user.
type ErrorMsg struct {
	UIMessage
	Err error
}

// StatusMsg is a transient line of information for the status bar.
type StatusMsg struct {
	UIMessage
	Text string
}

var (
	_ AppUIMessage = ErrorMsg{}
	_ AppUIMessage = StatusMsg{}
)
