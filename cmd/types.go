package main

import (
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
)

type BliveData struct {
	Meta struct {
		RecorderVersion string    `json:"RecorderVersion"`
		RoomID          int64     `json:"RoomID"`
		ShortRoomID     int64     `json:"ShortRoomID"`
		Name            string    `json:"Name"`
		Title           string    `json:"Title"`
		AreaNameParent  string    `json:"AreaNameParent"`
		AreaNameChild   string    `json:"AreaNameChild"`
		StartTime       time.Time `json:"StartTime"`
	} `json:"Meta"`
	Danmaku   []*BliveEvent[message.Danmaku]   `json:"Danmaku"`
	Gift      []*BliveEvent[message.SendGift]  `json:"Gift"`
	Guard     []*BliveEvent[message.GuardBuy]  `json:"Guard"`
	SuperChat []*BliveEvent[message.SuperChat] `json:"SuperChat"`
	Other     []*BliveEvent[message.Event]     `json:"Other"`
	User      []*message.UserInfo              `json:"User"`
	Skipped   map[string]uint32                `json:"Skipped"` // cmd: count
	mapUser   map[uint64]*message.UserInfo
}

// BliveEvent is one washed event, TimeStamp is unix milli when known
type BliveEvent[T any] struct {
	Cmd       string `json:"Cmd"`
	TimeStamp uint64 `json:"TimeStamp,omitempty"`
	Event     T      `json:"Event"`
}

func newBliveData() *BliveData {
	return &BliveData{
		Skipped: make(map[string]uint32),
		mapUser: make(map[uint64]*message.UserInfo),
	}
}
