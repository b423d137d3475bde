package message

import "fmt"

// Identity returns a key that is the same every time the relay repeats one
// event, for instance after a reconnect. Events without a stable id return false.
func Identity(event Event) (string, bool) {
	switch e := event.(type) {
	case SendGift:
		if e.TID == "" {
			return "", false
		}
		return "gift:" + e.TID, true
	case SuperChat:
		return fmt.Sprintf("superChat:%d", e.ID), true
	case GuardBuy:
		if e.StartTime == 0 {
			return "", false
		}
		return fmt.Sprintf("guard:%d:%d", e.User.UID, e.StartTime), true
	case Danmaku:
		if e.Timestamp == 0 {
			return "", false
		}
		return fmt.Sprintf("damaku:%d:%d", e.User.UID, e.Timestamp), true
	}
	return "", false
}
