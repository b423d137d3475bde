// Package sink renders or forwards what a connection produces
package sink

import (
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/livectx"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
)

// Sink receives events from the connection goroutine, implementations must
// not block for long
type Sink interface {
	OnEvent(event message.Event)
	OnGiftCombo(combo livectx.CombinedSendGift)
	OnSuperChat(replay livectx.Replay)
}
