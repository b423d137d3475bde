package message

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

type extractor func(env *Envelope) (Event, error)

var extractors = map[string]extractor{
	CmdLive:         liveStart,
	CmdPreparing:    liveStop,
	CmdCutOff:       liveCutOff,
	CmdWarning:      warning,
	CmdWelcome:      welcome,
	CmdWelcomeGuard: welcomeGuard,
	CmdDanmaku:      danmaku,
	CmdSendGift:     sendGift,
	CmdSuperChat:    superChat,
	CmdInteract:     interact,
	CmdGuardBuy:     guardBuy,
	CmdGiftTop:      giftTop,
}

// CommandName drops the option suffix some commands carry, DANMU_MSG:4:0:2:2:2:0 is DANMU_MSG
func CommandName(cmd string) string {
	name, _, _ := strings.Cut(cmd, ":")
	return name
}

// Supported lists every command name with an extractor
func Supported() []string {
	names := make([]string, 0, len(extractors))
	for name := range extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse turns an envelope into its typed event.
// Unknown commands give *NotSupportedError, known commands with the wrong
// shape give *DeserializeError; a partial event is never returned.
func Parse(env *Envelope) (Event, error) {
	name := CommandName(env.Cmd)
	extract, ok := extractors[name]
	if !ok {
		return nil, &NotSupportedError{Cmd: name}
	}
	event, err := extract(env)
	if err != nil {
		return nil, &DeserializeError{Cmd: name, Err: err}
	}
	return event, nil
}

// ParseBody is ParseEnvelope followed by Parse, cmd is empty only when the
// body has no readable cmd
func ParseBody(body []byte) (cmd string, event Event, err error) {
	env, err := ParseEnvelope(body)
	if err != nil {
		return "", nil, err
	}
	event, err = Parse(env)
	return CommandName(env.Cmd), event, err
}

func liveStart(env *Envelope) (Event, error) {
	room, err := env.Room()
	if err != nil {
		return nil, err
	}
	id, ok := room.AsNumber()
	if !ok {
		return nil, errors.New("roomid: want number")
	}
	return LiveStart{RoomID: id}, nil
}

func liveStop(env *Envelope) (Event, error) {
	room, err := env.Room()
	if err != nil {
		return nil, err
	}
	id, ok := room.AsString()
	if !ok {
		return nil, errors.New("roomid: want string")
	}
	return LiveStop{RoomID: id}, nil
}

func requireMsg(env *Envelope) (string, error) {
	msg, ok, err := env.Message()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("msg: missing")
	}
	return msg, nil
}

func liveCutOff(env *Envelope) (Event, error) {
	msg, err := requireMsg(env)
	if err != nil {
		return nil, err
	}
	return LiveCutOff{Message: msg}, nil
}

func warning(env *Envelope) (Event, error) {
	msg, err := requireMsg(env)
	if err != nil {
		return nil, err
	}
	return Warning{Message: msg}, nil
}

func welcome(env *Envelope) (Event, error) {
	f := newFields(env.Data)
	w := Welcome{
		User: UserInfo{
			UID:  f.Uint("uid"),
			Name: f.String("uname"),
		},
		IsAdmin: f.Flag("isadmin"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return w, nil
}

func welcomeGuard(env *Envelope) (Event, error) {
	f := newFields(env.Data)
	w := WelcomeGuard{
		User: UserInfo{
			UID:  f.Uint("uid"),
			Name: f.String("username"),
		},
	}
	level := f.Uint("guard_level")
	if f.err != nil {
		return nil, f.err
	}
	guard, err := ParseGuardLevel(level)
	if err != nil {
		return nil, err
	}
	w.Guard = guard
	w.User.Guard = &guard
	return w, nil
}

func danmaku(env *Envelope) (Event, error) {
	if !env.Info.IsArray() {
		return nil, errors.New("info: missing, want array")
	}
	f := newFields(env.Info)
	d := Danmaku{
		Text: f.String("1"),
		User: UserInfo{
			UID:  f.Uint("2.0"),
			Name: f.String("2.1"),
		},
		IsAdmin: f.Flag("2.2"),
		IsVIP:   f.Flag("2.3"),
	}
	d.User.Guard = optionalGuard(f.Uint("7"))
	d.User.Medal = danmakuMedal(f, "3")
	d.Timestamp = f.OptUint("0.4")
	if f.err != nil {
		return nil, f.err
	}
	return d, nil
}

// danmakuMedal reads the positional medal array, an empty array means no medal
func danmakuMedal(f *fields, path string) *Medal {
	if len(f.Array(path)) == 0 {
		return nil
	}
	return &Medal{
		Level:      f.Uint(path + ".0"),
		Name:       f.String(path + ".1"),
		AnchorName: f.OptString(path + ".2"),
		TargetUID:  f.OptUint(path + ".12"),
	}
}

// keyedMedal reads medal_info objects shared by gift and super chat payloads
func keyedMedal(f *fields, path string) *Medal {
	if !f.OptObject(path).Exists() {
		return nil
	}
	level := f.OptUint(path + ".medal_level")
	if level == 0 {
		return nil
	}
	return &Medal{
		Name:       f.OptString(path + ".medal_name"),
		Level:      level,
		TargetUID:  f.OptUint(path + ".target_id"),
		AnchorName: f.OptString(path + ".anchor_uname"),
	}
}

// uinfoUser reads the newer uinfo object: {uid, base{name}, guard{level}, medal{name, level, ruid}}
func uinfoUser(f *fields, path string) UserInfo {
	u := UserInfo{
		UID:  f.Uint(path + ".uid"),
		Name: f.String(path + ".base.name"),
	}
	if f.OptObject(path + ".guard").Exists() {
		u.Guard = optionalGuard(f.Uint(path + ".guard.level"))
	}
	if f.OptObject(path + ".medal").Exists() {
		u.Medal = &Medal{
			Name:      f.String(path + ".medal.name"),
			Level:     f.Uint(path + ".medal.level"),
			TargetUID: f.Uint(path + ".medal.ruid"),
		}
	}
	return u
}

func sendGift(env *Envelope) (Event, error) {
	f := newFields(env.Data)
	g := SendGift{
		User: UserInfo{
			UID:   f.Uint("uid"),
			Name:  f.String("uname"),
			Guard: optionalGuard(f.OptUint("guard_level")),
			Medal: keyedMedal(f, "medal_info"),
		},
		GiftName:  f.String("giftName"),
		Count:     f.Uint("num"),
		GiftID:    f.OptUint("giftId"),
		Price:     f.OptUint("price"),
		CoinType:  f.OptString("coin_type"),
		TID:       f.OptID("tid"),
		Timestamp: f.OptUint("timestamp"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return g, nil
}

func superChat(env *Envelope) (Event, error) {
	f := newFields(env.Data)
	sc := SuperChat{
		ID: f.Uint("id"),
		User: UserInfo{
			UID:   f.Uint("uid"),
			Name:  f.String("user_info.uname"),
			Guard: optionalGuard(f.OptUint("user_info.guard_level")),
			Medal: keyedMedal(f, "medal_info"),
		},
		Message:   f.String("message"),
		Price:     f.Float("price"),
		KeepTime:  f.Uint("time"),
		StartTime: f.OptUint("start_time"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return sc, nil
}

func interact(env *Envelope) (Event, error) {
	f := newFields(env.Data)
	user := uinfoUser(f, "uinfo")
	code := f.Uint("msg_type")
	if f.err != nil {
		return nil, f.err
	}
	typ, err := ParseInteractType(code)
	if err != nil {
		return nil, err
	}
	return Interact{User: user, Type: typ}, nil
}

func guardBuy(env *Envelope) (Event, error) {
	f := newFields(env.Data)
	g := GuardBuy{
		User: UserInfo{
			UID:  f.Uint("uid"),
			Name: f.String("username"),
		},
		Count:     f.Uint("num"),
		Price:     f.OptUint("price"),
		GiftName:  f.OptString("gift_name"),
		StartTime: f.OptUint("start_time"),
	}
	level := f.Uint("guard_level")
	if f.err != nil {
		return nil, f.err
	}
	guard, err := ParseGuardLevel(level)
	if err != nil {
		return nil, err
	}
	g.Guard = guard
	g.User.Guard = &guard
	return g, nil
}

func giftTop(env *Envelope) (Event, error) {
	f := newFields(env.Data)
	if !env.Data.IsArray() {
		f.fail("data", "array", env.Data)
		return nil, f.err
	}
	entries := env.Data.Array()
	ranks := make([]GiftTopEntry, 0, len(entries))
	for i := range entries {
		idx := strconv.Itoa(i)
		ranks = append(ranks, GiftTopEntry{
			UID:  f.Uint(idx + ".uid"),
			Name: f.String(idx + ".uname"),
			Coin: f.Uint(idx + ".coin"),
		})
	}
	if f.err != nil {
		return nil, f.err
	}
	return GiftTop{Ranks: ranks}, nil
}
