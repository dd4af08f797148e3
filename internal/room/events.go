// internal/room/events.go
package room

// Event is one outbound message to a connection. The "type" key carries the
// event name; remaining keys are the payload. Delivery is fire-and-forget:
// there is no acknowledgment, retry, or sequence numbering.
type Event map[string]interface{}

// Outbound event names. Inbound names live with the websocket handler.
const (
	EventRoomCreated      = "host:room_created"
	EventJoinError        = "error:join"
	EventRoomPlayers      = "room:players"
	EventPlayerJoined     = "player:joined"
	EventQuestionStart    = "question:start"
	EventInterstitialHide = "interstitial:hide"
	EventHostProgress     = "host:progress"
	EventQuestionResults  = "question:results"
	EventRoomMeta         = "room:meta"
	EventInterstitialShow = "interstitial:show"
	EventQuestionPaused   = "question:paused"
	EventQuestionResumed  = "question:resumed"
	EventVideoSkip        = "video:skip"
	EventScoresShow       = "scores:show"
	EventGameFinal        = "game:final"
	EventRoomEnded        = "room:ended"
)

// Type returns the event name, or "" for a malformed event.
func (ev Event) Type() string {
	t, _ := ev["type"].(string)
	return t
}
