// Package room resolves a live room into everything a relay connection
// needs: the canonical room id, the auth token and the relay hosts.
package room

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/client"
	"github.com/levigross/grequests"
	"k8s.io/klog/v2"
)

const (
	DefaultLiveAPI   = "https://api.live.bilibili.com"
	DefaultNavURL    = "https://api.bilibili.com/x/web-interface/nav"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
	Referer          = "https://www.bilibili.com/"

	// WbiKeyLifetime is how long nav keys are reused before refetching
	WbiKeyLifetime = time.Hour * 12
)

var ErrMissingWbiKeys = errors.New("room: nav response has no wbi keys")

// APIError is a well formed response carrying a non zero code
type APIError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("room: %s returned code %d: %s", e.Endpoint, e.Code, e.Message)
}

type apiResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type InitInfo struct {
	RoomID     uint64 `json:"room_id"`
	ShortID    uint64 `json:"short_id"`
	UID        uint64 `json:"uid"`
	LiveStatus int    `json:"live_status"`
}

type DanmuInfo struct {
	Token    string        `json:"token"`
	HostList []client.Host `json:"host_list"`
}

type navData struct {
	WbiImg struct {
		ImgURL string `json:"img_url"`
		SubURL string `json:"sub_url"`
	} `json:"wbi_img"`
}

// Resolver talks to the live web api. Zero value url fields use the public endpoints.
type Resolver struct {
	LiveAPI   string
	NavURL    string
	UserAgent string
	SESSDATA  string
	Clock     func() time.Time

	session *grequests.Session

	mu        sync.Mutex
	mixinKey  string
	fetchedAt time.Time
}

func NewResolver(sessData string, timeout time.Duration) *Resolver {
	return &Resolver{
		SESSDATA: sessData,
		session: grequests.NewSession(&grequests.RequestOptions{
			RequestTimeout: timeout,
			DialKeepAlive:  time.Second * 30,
		}),
	}
}

func (r *Resolver) liveAPI() string {
	if r.LiveAPI == "" {
		return DefaultLiveAPI
	}
	return r.LiveAPI
}

func (r *Resolver) navURL() string {
	if r.NavURL == "" {
		return DefaultNavURL
	}
	return r.NavURL
}

func (r *Resolver) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock()
}

func (r *Resolver) options(ctx context.Context) *grequests.RequestOptions {
	ua := r.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	ro := &grequests.RequestOptions{
		Context:   ctx,
		UserAgent: ua,
		Headers:   map[string]string{"Referer": Referer},
	}
	if r.SESSDATA != "" {
		ro.Cookies = []*http.Cookie{{Name: "SESSDATA", Value: r.SESSDATA}}
	}
	return ro
}

func (r *Resolver) get(ctx context.Context, endpoint, url string, v any) error {
	if r.session == nil {
		r.session = grequests.NewSession(nil)
	}
	resp, err := r.session.Get(url, r.options(ctx))
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Close()
	if !resp.Ok {
		return fmt.Errorf("request %s: http status %d", endpoint, resp.StatusCode)
	}
	if err := resp.JSON(v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// RoomInit maps a short or long room id to the canonical one
func (r *Resolver) RoomInit(ctx context.Context, roomID uint64) (*InitInfo, error) {
	var resp apiResponse[InitInfo]
	url := r.liveAPI() + "/room/v1/Room/room_init?id=" + strconv.FormatUint(roomID, 10)
	if err := r.get(ctx, "room_init", url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, &APIError{Endpoint: "room_init", Code: resp.Code, Message: resp.Message}
	}
	return &resp.Data, nil
}

// MixinKey returns the cached signing key, fetching nav keys when stale
func (r *Resolver) MixinKey(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mixinKey != "" && r.now().Sub(r.fetchedAt) < WbiKeyLifetime {
		klog.V(4).Info("using cached wbi keys")
		return r.mixinKey, nil
	}
	// nav answers not-logged-in with a non zero code, the keys are still there
	var resp apiResponse[navData]
	if err := r.get(ctx, "nav", r.navURL(), &resp); err != nil {
		return "", err
	}
	imgKey, subKey := keyFromURL(resp.Data.WbiImg.ImgURL), keyFromURL(resp.Data.WbiImg.SubURL)
	if imgKey == "" || subKey == "" {
		return "", ErrMissingWbiKeys
	}
	r.mixinKey = MixinKey(imgKey, subKey)
	r.fetchedAt = r.now()
	klog.V(2).Infof("wbi keys refreshed, img_key: %s, sub_key: %s", imgKey, subKey)
	return r.mixinKey, nil
}

// DanmuInfo fetches the token and relay hosts for a canonical room id
func (r *Resolver) DanmuInfo(ctx context.Context, roomID uint64) (*DanmuInfo, error) {
	mixinKey, err := r.MixinKey(ctx)
	if err != nil {
		return nil, err
	}
	query := Sign(map[string]string{"id": strconv.FormatUint(roomID, 10)}, mixinKey, r.now().Unix())
	var resp apiResponse[DanmuInfo]
	if err := r.get(ctx, "getDanmuInfo", r.liveAPI()+"/xlive/web-room/v1/index/getDanmuInfo?"+query, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, &APIError{Endpoint: "getDanmuInfo", Code: resp.Code, Message: resp.Message}
	}
	return &resp.Data, nil
}

// Resolve runs room_init then getDanmuInfo, uid is the account used for the certificate
func (r *Resolver) Resolve(ctx context.Context, roomID, uid uint64) (client.Session, []client.Host, error) {
	info, err := r.RoomInit(ctx, roomID)
	if err != nil {
		return client.Session{}, nil, err
	}
	if info.RoomID != roomID {
		klog.Infof("room %d resolved to %d", roomID, info.RoomID)
	}
	danmu, err := r.DanmuInfo(ctx, info.RoomID)
	if err != nil {
		return client.Session{}, nil, err
	}
	if len(danmu.HostList) == 0 {
		return client.Session{}, nil, &APIError{Endpoint: "getDanmuInfo", Message: "empty host list"}
	}
	session := client.Session{
		RoomID: info.RoomID,
		UID:    uid,
		Token:  danmu.Token,
		Host:   danmu.HostList[0],
	}
	return session, danmu.HostList, nil
}
