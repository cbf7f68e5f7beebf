package receiver

import (
	appevents "github.com/rescp17/ticketShare/internal/app_events"
)

// --- UI to App Events ---

// ReceiveEvent redeems a pasted ticket.
type ReceiveEvent struct {
	appevents.Event
	Ticket string
}

var _ appevents.AppEvent = ReceiveEvent{}

// --- App to UI Messages ---

// ReceiveStartedMsg is sent once a destination was picked and the download begins.
type ReceiveStartedMsg struct {
	appevents.UIMessage
	Dir string
}

// ReceiveCompleteMsg is sent after the file was verified and moved into place.
type ReceiveCompleteMsg struct {
	appevents.UIMessage
	Dir string
}

var (
	_ appevents.AppUIMessage = ReceiveStartedMsg{}
	_ appevents.AppUIMessage = ReceiveCompleteMsg{}
)
