// Package livectx keeps the time windowed aggregation tables of one connection.
// A Context has a single owner, the client loop, and is not safe for
// concurrent use.
package livectx

import (
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/duke-git/lancet/v2/slice"
)

type GiftKey struct {
	UID      uint64
	GiftName string
}

// CombinedSendGift is a run of identical gifts from one user
type CombinedSendGift struct {
	UID        uint64    `json:"uid"`
	UserName   string    `json:"user_name"`
	GiftName   string    `json:"gift_name"`
	GiftCount  uint64    `json:"gift_count"`
	EventCount uint64    `json:"event_count"`
	ExpiryTime time.Time `json:"expiry_time"`
}

func (c CombinedSendGift) Key() GiftKey {
	return GiftKey{UID: c.UID, GiftName: c.GiftName}
}

// SuperChatKey tells apart two super chats of one user received in the same instant by ID
type SuperChatKey struct {
	UID      uint64
	SendTime int64 // unix nano
	ID       uint64
}

// SuperChatPersistent is a super chat waiting to be shown again
type SuperChatPersistent struct {
	Info         message.SuperChat `json:"info"`
	SendTime     time.Time         `json:"send_time"`
	NextShowTime time.Time         `json:"next_show_time"`
}

func (p SuperChatPersistent) Key() SuperChatKey {
	return SuperChatKey{UID: p.Info.User.UID, SendTime: p.SendTime.UnixNano(), ID: p.Info.ID}
}

// ExpiryTime is the end of the paid keep time
func (p SuperChatPersistent) ExpiryTime() time.Time {
	return p.SendTime.Add(time.Duration(p.Info.KeepTime) * time.Second)
}

type Replay struct {
	SuperChatPersistent
	Expired bool `json:"expired"`
}

type Option func(c *Context)

// WithClock replaces the wall clock, mostly for tests
func WithClock(clock func() time.Time) Option {
	return func(c *Context) {
		c.clock = clock
	}
}

type Context struct {
	clock      func() time.Time
	gifts      map[GiftKey]*CombinedSendGift
	superChats map[SuperChatKey]*SuperChatPersistent
}

func New(opts ...Option) *Context {
	c := &Context{
		clock:      time.Now,
		gifts:      make(map[GiftKey]*CombinedSendGift),
		superChats: make(map[SuperChatKey]*SuperChatPersistent),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) Now() time.Time {
	return c.clock()
}

// ContainsGift reports whether a combo for the same user and gift is still open
func (c *Context) ContainsGift(info message.SendGift) bool {
	_, ok := c.gifts[GiftKey{UID: info.User.UID, GiftName: info.GiftName}]
	return ok
}

// AppendGift folds one gift event into its combo and reports whether the combo
// was created by this call. With refresh set every occurrence pushes the
// expiry to now+window, otherwise it stays at first sight+window.
func (c *Context) AppendGift(info message.SendGift, window time.Duration, refresh bool) bool {
	now := c.clock()
	key := GiftKey{UID: info.User.UID, GiftName: info.GiftName}
	combined, ok := c.gifts[key]
	if !ok {
		combined = &CombinedSendGift{
			UID:        info.User.UID,
			UserName:   info.User.Name,
			GiftName:   info.GiftName,
			ExpiryTime: now.Add(window),
		}
		c.gifts[key] = combined
	}
	combined.GiftCount += info.Count
	combined.EventCount++
	if refresh {
		combined.ExpiryTime = now.Add(window)
	}
	return !ok
}

// Expired returns every combo past its expiry and removes it, ordered by expiry
func (c *Context) Expired() []CombinedSendGift {
	now := c.clock()
	var expired []CombinedSendGift
	for key, combined := range c.gifts {
		if now.After(combined.ExpiryTime) {
			expired = append(expired, *combined)
			delete(c.gifts, key)
		}
	}
	slice.SortBy(expired, func(a, b CombinedSendGift) bool {
		if a.ExpiryTime.Equal(b.ExpiryTime) {
			return a.UID < b.UID
		}
		return a.ExpiryTime.Before(b.ExpiryTime)
	})
	return expired
}

// AppendSuperChat stores a super chat for replay, first replay at now+showInterval
func (c *Context) AppendSuperChat(info message.SuperChat, showInterval time.Duration) SuperChatKey {
	now := c.clock()
	p := &SuperChatPersistent{
		Info:         info,
		SendTime:     now,
		NextShowTime: now.Add(showInterval),
	}
	key := p.Key()
	c.superChats[key] = p
	return key
}

// ShouldShow returns the records that are due again or past their keep time,
// ordered by send time. Expired records are removed, due ones stay until the
// caller reschedules them.
func (c *Context) ShouldShow() []Replay {
	now := c.clock()
	var replays []Replay
	for key, p := range c.superChats {
		expired := now.After(p.ExpiryTime())
		if !expired && !now.After(p.NextShowTime) {
			continue
		}
		replays = append(replays, Replay{SuperChatPersistent: *p, Expired: expired})
		if expired {
			delete(c.superChats, key)
		}
	}
	slice.SortBy(replays, func(a, b Replay) bool {
		if !a.SendTime.Equal(b.SendTime) {
			return a.SendTime.Before(b.SendTime)
		}
		if a.Info.User.UID != b.Info.User.UID {
			return a.Info.User.UID < b.Info.User.UID
		}
		return a.Info.ID < b.Info.ID
	})
	return replays
}

// Reschedule moves the next show time of a record to now+interval
func (c *Context) Reschedule(key SuperChatKey, interval time.Duration) bool {
	p, ok := c.superChats[key]
	if !ok {
		return false
	}
	p.NextShowTime = c.clock().Add(interval)
	return true
}

func (c *Context) GiftLen() int {
	return len(c.gifts)
}

func (c *Context) SuperChatLen() int {
	return len(c.superChats)
}
