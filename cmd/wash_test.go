package main

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/capture"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/packet"
	"github.com/tidwall/gjson"
)

const recorderXml = `<?xml version="1.0" encoding="utf-8"?>
<i>
<BililiveRecorder version="2.10.0" />
<BililiveRecorderRecordInfo roomid="5050" shortid="3" name="anchor" title="t" areanameparent="p" areanamechild="c" start_time="2024-07-01T12:00:00+08:00" />
<d p="1,1,25,16777215,1700000000000,0,1001,0" raw='[[0,1,25,16777215,1700000000000],"hello",[1001,"alice",0,0],[],[10,0],[""],0,3]'>hello</d>
<gift ts="1" user="alice" uid="1001" raw='{"uid":1001,"uname":"alice","giftName":"rose","num":2,"tid":"t1","timestamp":1700000001}' />
<sc ts="2" user="bob" uid="1002" raw='{"id":7,"uid":1002,"user_info":{"uname":"bob"},"message":"hi","price":30,"time":60}' />
<guard ts="3" user="bob" uid="1002" raw='{"uid":1002,"username":"bob","guard_level":3,"num":1}' />
<gift ts="4" raw='{"uid":1003}' />
</i>`

func TestWashXml(t *testing.T) {
	data, err := WashApp.washXml(strings.NewReader(recorderXml))
	if err != nil {
		t.Fatalf("wash: %s", err.Error())
	}
	if data.Meta.RoomID != 5050 || data.Meta.ShortRoomID != 3 || data.Meta.RecorderVersion != "2.10.0" {
		t.Fatalf("unexpected meta: %+v", data.Meta)
	}
	if len(data.Danmaku) != 1 || data.Danmaku[0].Event.Text != "hello" || data.Danmaku[0].TimeStamp != 1700000000000 {
		t.Fatalf("unexpected danmaku: %+v", data.Danmaku)
	}
	if g := data.Danmaku[0].Event.User.Guard; g == nil || *g != message.GuardCaptain {
		t.Fatalf("need a captain guard on the danmaku user")
	}
	if len(data.Gift) != 1 || data.Gift[0].Event.Count != 2 || data.Gift[0].TimeStamp != 1700000001000 {
		t.Fatalf("unexpected gifts: %+v", data.Gift)
	}
	if len(data.SuperChat) != 1 || len(data.Guard) != 1 {
		t.Fatalf("need one super chat and one guard, got %d and %d", len(data.SuperChat), len(data.Guard))
	}
	if data.Skipped[message.CmdSendGift] != 1 {
		t.Fatalf("the malformed gift should be counted as skipped: %+v", data.Skipped)
	}
	if len(data.User) != 2 || data.User[0].UID != 1001 || data.User[1].UID != 1002 {
		t.Fatalf("unexpected users: %+v", data.User)
	}
	if data.User[1].Guard == nil || *data.User[1].Guard != message.GuardCaptain {
		t.Fatalf("guard buy should carry the tier to the user list")
	}
}

func TestWashCapture(t *testing.T) {
	var buf bytes.Buffer
	w := capture.NewWriter(&buf, false)
	_ = w.Write(packet.Encode(packet.ProtocolCommand, packet.TypeCommand, []byte(`{"cmd":"LIVE","roomid":5050}`)))
	_ = w.Write(packet.Encode(packet.ProtocolCommand, packet.TypeCommand, []byte(`{"cmd":"NEW_THING"}`)))
	_ = w.Write([]byte{0, 0})
	_ = w.Close()
	r, err := capture.NewReader(&buf, false)
	if err != nil {
		t.Fatalf("reader: %s", err.Error())
	}
	data, err := WashApp.washCapture(r)
	if err != nil {
		t.Fatalf("wash: %s", err.Error())
	}
	if len(data.Other) != 1 || data.Other[0].Cmd != message.CmdLive || data.Other[0].TimeStamp == 0 {
		t.Fatalf("unexpected events: %+v", data.Other)
	}
	if data.Skipped["NEW_THING"] != 1 || data.Skipped["FRAME"] != 1 {
		t.Fatalf("unexpected skipped counts: %+v", data.Skipped)
	}
}

func TestWasherWritesJson(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Blive-5050-20240701-120000-000-test.xml")
	if err := os.WriteFile(src, []byte(recorderXml), 0o644); err != nil {
		t.Fatalf("write: %s", err.Error())
	}
	if washed(src) {
		t.Fatalf("nothing washed yet")
	}
	if err := WashApp.washer(src, true); err != nil {
		t.Fatalf("washer: %s", err.Error())
	}
	if !washed(src) {
		t.Fatalf("output should be detected")
	}
	fp, err := os.Open(outputBase(src) + ".json.gz")
	if err != nil {
		t.Fatalf("open output: %s", err.Error())
	}
	defer fp.Close()
	gz, err := gzip.NewReader(fp)
	if err != nil {
		t.Fatalf("gzip: %s", err.Error())
	}
	var out bytes.Buffer
	if _, err := out.ReadFrom(gz); err != nil {
		t.Fatalf("read: %s", err.Error())
	}
	if n := gjson.GetBytes(out.Bytes(), "Danmaku.#").Int(); n != 1 {
		t.Fatalf("need 1 danmaku in the output, got %d", n)
	}
	if name := gjson.GetBytes(out.Bytes(), "Gift.0.Event.gift_name").String(); name != "rose" {
		t.Fatalf("unexpected gift name %q", name)
	}
}

// shortWriter accepts a number of writes, then fails every one after
type shortWriter struct {
	writes int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if w.writes <= 0 {
		return 0, errors.New("disk full")
	}
	w.writes--
	return len(p), nil
}

func TestWriteJsonReportsGzipFooter(t *testing.T) {
	// the gzip header is written eagerly, the compressed body and footer only on close
	err := writeJson(&shortWriter{writes: 1}, map[string]int{"a": 1}, true)
	if err == nil || !strings.Contains(err.Error(), "gzip close") {
		t.Fatalf("need the close failure, got %v", err)
	}
	var buf bytes.Buffer
	if err := writeJson(&buf, map[string]int{"a": 1}, true); err != nil {
		t.Fatalf("write: %s", err.Error())
	}
	gz, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("gzip: %s", err.Error())
	}
	if out, err := io.ReadAll(gz); err != nil || gjson.GetBytes(out, "a").Int() != 1 {
		t.Fatalf("need a complete stream, got %q %v", out, err)
	}
}

func TestOutputBase(t *testing.T) {
	for in, need := range map[string]string{
		"a/Blive-1.xml":       "a/Blive-1",
		"room.capture":        "room",
		"room.capture.gz":     "room",
		"x.y/room.capture.gz": "x.y/room",
	} {
		if got := outputBase(in); got != need {
			t.Fatalf("%s: need %s, got %s", in, need, got)
		}
	}
}
