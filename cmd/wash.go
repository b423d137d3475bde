package main

import (
	"bufio"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/capture"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/depack"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/bytedance/sonic"
	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/duke-git/lancet/v2/slice"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var WashApp = &WashCommand{}

type WashCommand struct {
}

func (w *WashCommand) Command() *cli.Command {
	return &cli.Command{
		Name:            "wash",
		Usage:           "washing BililiveRecorder xml or captured frames to structured data",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Value:   "./",
				Usage:   "Directory to be processed",
			},
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "whether to include subdirectories",
				Value:   false,
			},
			&cli.StringFlag{
				Name:    "pattern",
				Aliases: []string{"p"},
				Usage:   "file name pattern to be processed",
				Value:   `^(Blive-\d+-\d+-\d+-\d+-\S+\.xml|\S+\.capture(\.gz)?)$`,
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "only file to be processed and force overwrite",
			},
			&cli.BoolFlag{
				Name:  "no-compress",
				Usage: "whether to compress the output file",
				Value: false,
			},
		},
		Action: w.action,
	}
}

// outputBase strips .gz and the format extension
func outputBase(path string) string {
	path = strings.TrimSuffix(path, ".gz")
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func washed(path string) bool {
	base := outputBase(path)
	return fileutil.IsExist(base+".json") || fileutil.IsExist(base+".json.gz")
}

func (w *WashCommand) action(c *cli.Context) error {
	var fileList []string
	if onlyFile := c.String("file"); onlyFile != "" {
		fileList = append(fileList, onlyFile)
	} else {
		// adding files
		klog.Infof("scanning dir: %s", c.String("dir"))
		pattern, err := regexp.Compile(c.String("pattern"))
		if err != nil {
			return fmt.Errorf("bad pattern: %w", err)
		}
		if c.Bool("recursive") {
			err := filepath.Walk(c.String("dir"), func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && pattern.MatchString(info.Name()) && !washed(path) {
					fileList = append(fileList, path)
				}
				return nil
			})
			if err != nil {
				klog.Errorf("walk dir error: %s", err.Error())
				return err
			}
		} else {
			dir := c.String("dir")
			entry, err := os.ReadDir(dir)
			if err != nil {
				klog.Errorf("read dir error: %s", err.Error())
				return err
			}
			for _, e := range entry {
				if e.IsDir() {
					continue
				}
				path := filepath.Join(dir, e.Name())
				if pattern.MatchString(e.Name()) && !washed(path) {
					fileList = append(fileList, path)
				}
			}
		}
		klog.Infof("scan finished, %d files found", len(fileList))
	}

	compress := !c.Bool("no-compress")
	failed := 0
	for _, f := range fileList {
		if err := w.washer(f, compress); err != nil {
			klog.Errorf("wash %s failed: %s", f, err.Error())
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(fileList))
	}
	return nil
}

func (w *WashCommand) washer(filename string, compress bool) error {
	klog.Infof("processing file: %s", filename)
	var data *BliveData
	var err error
	if strings.HasSuffix(strings.TrimSuffix(filename, ".gz"), ".capture") {
		var r *capture.Reader
		if r, err = capture.Open(filename); err != nil {
			return err
		}
		defer r.Close()
		data, err = w.washCapture(r)
	} else {
		var srcFp *os.File
		if srcFp, err = os.Open(filename); err != nil {
			return err
		}
		defer srcFp.Close()
		data, err = w.washXml(bufio.NewReader(srcFp))
	}
	if err != nil {
		return err
	}
	klog.Infof("%s: %d danmaku, %d gifts, %d guards, %d super chats, %d users",
		filename, len(data.Danmaku), len(data.Gift), len(data.Guard), len(data.SuperChat), len(data.User))

	dst := outputBase(filename) + ".json"
	if compress {
		dst += ".gz"
	}
	dstFp, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file error: %w", err)
	}
	if err := writeJson(dstFp, data, compress); err != nil {
		_ = dstFp.Close()
		return err
	}
	if err := dstFp.Close(); err != nil {
		return fmt.Errorf("close file error: %w", err)
	}
	return nil
}

// writeJson encodes v into dst, the gzip footer is part of the write
func writeJson(dst io.Writer, v any, compress bool) error {
	if !compress {
		if err := sonic.ConfigDefault.NewEncoder(dst).Encode(v); err != nil {
			return fmt.Errorf("encode json error: %w", err)
		}
		return nil
	}
	gz := gzip.NewWriter(dst)
	if err := sonic.ConfigDefault.NewEncoder(gz).Encode(v); err != nil {
		_ = gz.Close()
		return fmt.Errorf("encode json error: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("gzip close error: %w", err)
	}
	return nil
}

func (w *WashCommand) washXml(r io.Reader) (*BliveData, error) {
	decoder := xml.NewDecoder(r)
	data := newBliveData()
	for {
		token, err := decoder.Token()
		if token == nil && err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml error: %w", err)
		}
		w.attrParse(data, token)
	}
	w.finish(data)
	return data, nil
}

func (w *WashCommand) washCapture(r *capture.Reader) (*BliveData, error) {
	data := newBliveData()
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		_, res, err := depack.DepackBytes(rec.Data)
		if err != nil {
			klog.V(2).Infof("skipped frame at %s: %s", rec.Time, err.Error())
			data.Skipped["FRAME"]++
			continue
		}
		events, ok := res.(depack.LiveEvents)
		if !ok {
			continue
		}
		for _, cmd := range events.Commands {
			w.collect(data, cmd.Cmd, cmd.Event, cmd.Err, uint64(rec.Time.UnixMilli()))
		}
	}
	w.finish(data)
	return data, nil
}

// wrapRaw rebuilds the relay envelope around a recorder raw attribute
func wrapRaw(element, raw string) (string, bool) {
	switch element {
	case "d":
		return `{"cmd":"` + message.CmdDanmaku + `","info":` + raw + `}`, true
	case "gift":
		return `{"cmd":"` + message.CmdSendGift + `","data":` + raw + `}`, true
	case "sc":
		return `{"cmd":"` + message.CmdSuperChat + `","data":` + raw + `}`, true
	case "guard":
		return `{"cmd":"` + message.CmdGuardBuy + `","data":` + raw + `}`, true
	}
	return "", false
}

func (w *WashCommand) attrParse(data *BliveData, token xml.Token) {
	t, ok := token.(xml.StartElement)
	if !ok {
		return
	}
	switch t.Name.Local {
	case "BililiveRecorder":
		for _, attr := range t.Attr {
			if attr.Name.Local == "version" {
				data.Meta.RecorderVersion = attr.Value
			}
		}
	case "BililiveRecorderRecordInfo":
		for _, attr := range t.Attr {
			switch attr.Name.Local {
			case "roomid":
				data.Meta.RoomID, _ = strconv.ParseInt(attr.Value, 10, 64)
			case "shortid":
				data.Meta.ShortRoomID, _ = strconv.ParseInt(attr.Value, 10, 64)
			case "name":
				data.Meta.Name = attr.Value
			case "title":
				data.Meta.Title = attr.Value
			case "areanameparent":
				data.Meta.AreaNameParent = attr.Value
			case "areanamechild":
				data.Meta.AreaNameChild = attr.Value
			case "start_time":
				data.Meta.StartTime, _ = time.Parse(time.RFC3339, attr.Value)
			}
		}
	default:
		for _, attr := range t.Attr {
			if attr.Name.Local != "raw" {
				continue
			}
			body, ok := wrapRaw(t.Name.Local, attr.Value)
			if !ok {
				continue
			}
			cmd, event, err := message.ParseBody([]byte(body))
			w.collect(data, cmd, event, err, 0)
		}
	}
}

func (w *WashCommand) collect(data *BliveData, cmd string, event message.Event, err error, ts uint64) {
	if err != nil {
		if cmd == "" {
			cmd = "UNKNOWN"
		}
		klog.V(4).Infof("skipped %s: %s", cmd, err.Error())
		data.Skipped[cmd]++
		return
	}
	switch e := event.(type) {
	case message.Danmaku:
		data.Danmaku = append(data.Danmaku, &BliveEvent[message.Danmaku]{Cmd: cmd, TimeStamp: orTime(e.Timestamp, ts), Event: e})
		w.updateUser(data, e.User)
	case message.SendGift:
		data.Gift = append(data.Gift, &BliveEvent[message.SendGift]{Cmd: cmd, TimeStamp: orTime(e.Timestamp*1000, ts), Event: e})
		w.updateUser(data, e.User)
	case message.GuardBuy:
		data.Guard = append(data.Guard, &BliveEvent[message.GuardBuy]{Cmd: cmd, TimeStamp: orTime(e.StartTime*1000, ts), Event: e})
		w.updateUser(data, e.User)
	case message.SuperChat:
		data.SuperChat = append(data.SuperChat, &BliveEvent[message.SuperChat]{Cmd: cmd, TimeStamp: orTime(e.StartTime*1000, ts), Event: e})
		w.updateUser(data, e.User)
	default:
		data.Other = append(data.Other, &BliveEvent[message.Event]{Cmd: cmd, TimeStamp: ts, Event: event})
	}
}

func orTime(own, fallback uint64) uint64 {
	if own != 0 {
		return own
	}
	return fallback
}

// updateUser keeps the latest name and the last known guard and medal per uid
func (w *WashCommand) updateUser(data *BliveData, userInfo message.UserInfo) {
	if userInfo.UID == 0 {
		return
	}
	info, ok := data.mapUser[userInfo.UID]
	if !ok {
		info = &message.UserInfo{UID: userInfo.UID}
		data.mapUser[userInfo.UID] = info
	}
	info.Name = userInfo.Name
	if userInfo.Guard != nil {
		info.Guard = userInfo.Guard
	}
	if userInfo.Medal != nil {
		info.Medal = userInfo.Medal
	}
}

// final map listing
func (w *WashCommand) finish(data *BliveData) {
	for _, u := range data.mapUser {
		data.User = append(data.User, u)
	}
	slice.SortBy(data.User, func(a, b *message.UserInfo) bool {
		return a.UID < b.UID
	})
}
