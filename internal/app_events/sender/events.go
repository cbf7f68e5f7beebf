package sender

import (
	appevents "github.com/rescp17/ticketShare/internal/app_events"
)

// --- App Events (from TUI to App) ---

// BrowseEvent asks the app to open the file picker.
type BrowseEvent struct {
	appevents.Event
}

// PathDroppedEvent carries paths dropped or pasted into the terminal. Only the first is used.
type PathDroppedEvent struct {
	appevents.Event
	Paths []string
}

// ShareFileEvent shares the selected file.
type ShareFileEvent struct {
	appevents.Event
}

// ClearPathEvent withdraws the selection before it is shared.
type ClearPathEvent struct {
	appevents.Event
}

// DisconnectEvent is a click on the liveness indicator.
type DisconnectEvent struct {
	appevents.Event
}

// CopyTicketEvent copies the current ticket to the clipboard.
type CopyTicketEvent struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = BrowseEvent{}
	_ appevents.AppEvent = PathDroppedEvent{}
	_ appevents.AppEvent = ShareFileEvent{}
	_ appevents.AppEvent = ClearPathEvent{}
	_ appevents.AppEvent = DisconnectEvent{}
	_ appevents.AppEvent = CopyTicketEvent{}
)

// --- UI Messages (from App to TUI) ---

type TicketIssuedMsg struct {
	appevents.UIMessage
	Ticket string
}

type DisconnectedMsg struct {
	appevents.UIMessage
}

type TicketCopiedMsg struct {
	appevents.UIMessage
}

var (
	_ appevents.AppUIMessage = TicketIssuedMsg{}
	_ appevents.AppUIMessage = DisconnectedMsg{}
	_ appevents.AppUIMessage = TicketCopiedMsg{}
)
