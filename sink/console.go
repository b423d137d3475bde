package sink

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/livectx"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/bytedance/sonic"
	"github.com/zoumo/goset"
	"k8s.io/klog/v2"
)

// Console prints one line per event.
// With CombineGifts set raw gifts are hidden and only closed combos are printed.
type Console struct {
	Out          io.Writer
	JSON         bool
	CombineGifts bool
	ignore       goset.Set
}

func NewConsole(out io.Writer, ignore ...string) *Console {
	if out == nil {
		out = os.Stdout
	}
	c := &Console{Out: out, ignore: goset.NewSet()}
	for _, cmd := range ignore {
		if cmd = strings.TrimSpace(cmd); cmd != "" {
			_ = c.ignore.Add(cmd)
		}
	}
	return c
}

func (c *Console) ignored(kind string) bool {
	return c.ignore != nil && c.ignore.Contains(kind)
}

func (c *Console) OnEvent(event message.Event) {
	if c.ignored(event.Command()) {
		return
	}
	if _, ok := event.(message.SendGift); ok && c.CombineGifts {
		return
	}
	if c.JSON {
		c.printJSON(event.Command(), event)
		return
	}
	c.println(FormatEvent(event))
}

func (c *Console) OnGiftCombo(combo livectx.CombinedSendGift) {
	if !c.CombineGifts || c.ignored(message.CmdSendGift) {
		return
	}
	if c.JSON {
		c.printJSON("GIFT_COMBO", combo)
		return
	}
	c.println(FormatCombo(combo))
}

// OnSuperChat prints replays that are still within their keep time
func (c *Console) OnSuperChat(replay livectx.Replay) {
	if replay.Expired || c.ignored(message.CmdSuperChat) {
		return
	}
	if c.JSON {
		c.printJSON("SUPER_CHAT_REPLAY", replay)
		return
	}
	c.println(FormatSuperChat(replay.Info) + " (replay)")
}

func (c *Console) println(line string) {
	if _, err := fmt.Fprintln(c.Out, line); err != nil {
		klog.Errorf("console write failed: %s", err.Error())
	}
}

func (c *Console) printJSON(kind string, v any) {
	data, err := sonic.MarshalString(map[string]any{"kind": kind, "data": v})
	if err != nil {
		klog.Errorf("marshal %s failed: %s", kind, err.Error())
		return
	}
	c.println(data)
}

func formatUser(u message.UserInfo) string {
	var b strings.Builder
	if u.Guard != nil {
		b.WriteString("[" + u.Guard.String() + "]")
	}
	if u.Medal != nil {
		fmt.Fprintf(&b, "[%s %d]", u.Medal.Name, u.Medal.Level)
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	b.WriteString(u.Name)
	return b.String()
}

func FormatSuperChat(sc message.SuperChat) string {
	return fmt.Sprintf("[SUPER CHAT %g] %s: %s", sc.Price, formatUser(sc.User), sc.Message)
}

func FormatCombo(combo livectx.CombinedSendGift) string {
	return fmt.Sprintf("[GIFT] %s sent %s x%d (%d combos)", combo.UserName, combo.GiftName, combo.GiftCount, combo.EventCount)
}

func FormatEvent(event message.Event) string {
	switch e := event.(type) {
	case message.LiveStart:
		return fmt.Sprintf("[LIVE] room %d is live", e.RoomID)
	case message.LiveStop:
		return fmt.Sprintf("[LIVE] room %s stopped", e.RoomID)
	case message.LiveCutOff:
		return "[LIVE] cut off: " + e.Message
	case message.Warning:
		return "[WARNING] " + e.Message
	case message.Welcome:
		return "[WELCOME] " + formatUser(e.User)
	case message.WelcomeGuard:
		return fmt.Sprintf("[WELCOME] %s (%s)", e.User.Name, e.Guard)
	case message.Danmaku:
		return fmt.Sprintf("[DANMAKU] %s: %s", formatUser(e.User), e.Text)
	case message.SendGift:
		return fmt.Sprintf("[GIFT] %s sent %s x%d", formatUser(e.User), e.GiftName, e.Count)
	case message.SuperChat:
		return FormatSuperChat(e)
	case message.Interact:
		return fmt.Sprintf("[INTERACT] %s %s", formatUser(e.User), e.Type)
	case message.GuardBuy:
		return fmt.Sprintf("[GUARD] %s bought %s x%d", e.User.Name, e.Guard, e.Count)
	case message.GiftTop:
		ranks := make([]string, 0, len(e.Ranks))
		for i, r := range e.Ranks {
			ranks = append(ranks, fmt.Sprintf("%d.%s(%d)", i+1, r.Name, r.Coin))
		}
		return "[GIFT TOP] " + strings.Join(ranks, " ")
	}
	return fmt.Sprintf("[%s] %+v", event.Command(), event)
}
