package message

const (
	CmdLive         = "LIVE"
	CmdPreparing    = "PREPARING"
	CmdCutOff       = "CUT_OFF"
	CmdWarning      = "WARNING"
	CmdWelcome      = "WELCOME"
	CmdWelcomeGuard = "WELCOME_GUARD"
	CmdDanmaku      = "DANMU_MSG"
	CmdSendGift     = "SEND_GIFT"
	CmdSuperChat    = "SUPER_CHAT_MESSAGE"
	CmdInteract     = "INTERACT_WORD"
	CmdGuardBuy     = "GUARD_BUY"
	CmdGiftTop      = "GIFT_TOP"
)

// Event is one typed live event. The set of implementations is closed.
type Event interface {
	Command() string
	isEvent()
}

type Medal struct {
	Name       string `json:"name"`
	Level      uint64 `json:"level"`
	TargetUID  uint64 `json:"target_uid,omitempty"` // anchor uid the medal belongs to
	AnchorName string `json:"anchor_name,omitempty"`
}

type UserInfo struct {
	UID   uint64      `json:"uid"`
	Name  string      `json:"name"`
	Guard *GuardLevel `json:"guard,omitempty"`
	Medal *Medal      `json:"medal,omitempty"`
}

type LiveStart struct {
	RoomID uint64 `json:"room_id"`
}

type LiveStop struct {
	RoomID string `json:"room_id"`
}

type LiveCutOff struct {
	Message string `json:"message"`
}

type Warning struct {
	Message string `json:"message"`
}

type Welcome struct {
	User    UserInfo `json:"user"`
	IsAdmin bool     `json:"is_admin"`
}

type WelcomeGuard struct {
	User  UserInfo   `json:"user"`
	Guard GuardLevel `json:"guard"`
}

type Danmaku struct {
	User      UserInfo `json:"user"`
	Text      string   `json:"text"`
	IsAdmin   bool     `json:"is_admin"`
	IsVIP     bool     `json:"is_vip"`
	Timestamp uint64   `json:"timestamp,omitempty"` // milliseconds
}

type SendGift struct {
	User      UserInfo `json:"user"`
	GiftID    uint64   `json:"gift_id,omitempty"`
	GiftName  string   `json:"gift_name"`
	Count     uint64   `json:"count"`
	Price     uint64   `json:"price,omitempty"`
	CoinType  string   `json:"coin_type,omitempty"`
	TID       string   `json:"tid,omitempty"`
	Timestamp uint64   `json:"timestamp,omitempty"` // seconds
}

type SuperChat struct {
	ID        uint64   `json:"id"`
	User      UserInfo `json:"user"`
	Message   string   `json:"message"`
	Price     float64  `json:"price"`
	KeepTime  uint64   `json:"keep_time"` // seconds
	StartTime uint64   `json:"start_time,omitempty"`
}

type Interact struct {
	User UserInfo     `json:"user"`
	Type InteractType `json:"type"`
}

type GuardBuy struct {
	User      UserInfo   `json:"user"`
	Guard     GuardLevel `json:"guard"`
	Count     uint64     `json:"count"`
	Price     uint64     `json:"price,omitempty"`
	GiftName  string     `json:"gift_name,omitempty"`
	StartTime uint64     `json:"start_time,omitempty"` // seconds
}

type GiftTopEntry struct {
	UID  uint64 `json:"uid"`
	Name string `json:"name"`
	Coin uint64 `json:"coin"`
}

type GiftTop struct {
	Ranks []GiftTopEntry `json:"ranks"`
}

func (LiveStart) Command() string    { return CmdLive }
func (LiveStop) Command() string     { return CmdPreparing }
func (LiveCutOff) Command() string   { return CmdCutOff }
func (Warning) Command() string      { return CmdWarning }
func (Welcome) Command() string      { return CmdWelcome }
func (WelcomeGuard) Command() string { return CmdWelcomeGuard }
func (Danmaku) Command() string      { return CmdDanmaku }
func (SendGift) Command() string     { return CmdSendGift }
func (SuperChat) Command() string    { return CmdSuperChat }
func (Interact) Command() string     { return CmdInteract }
func (GuardBuy) Command() string     { return CmdGuardBuy }
func (GiftTop) Command() string      { return CmdGiftTop }

func (LiveStart) isEvent()    {}
func (LiveStop) isEvent()     {}
func (LiveCutOff) isEvent()   {}
func (Warning) isEvent()      {}
func (Welcome) isEvent()      {}
func (WelcomeGuard) isEvent() {}
func (Danmaku) isEvent()      {}
func (SendGift) isEvent()     {}
func (SuperChat) isEvent()    {}
func (Interact) isEvent()     {}
func (GuardBuy) isEvent()     {}
func (GiftTop) isEvent()      {}
