package main

import (
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/agent"
	"github.com/TiyaAnlite/FocotServicesCommon/echox"
	"github.com/TiyaAnlite/FocotServicesCommon/natsx"
)

type envConfig struct {
	echox.EchoConfig
	natsx.NatsConfig
	ConfigFile    string `json:"config_file" env:"CONFIG_FILE" envDefault:"config.yaml"`
	AgentId       string `json:"agent_id" env:"AGENT_ID" envDefault:"bilive-chat"`
	SubjectPrefix string `json:"subject_prefix" env:"SUBJECT_PREFIX" envDefault:"dmCenter"`
	EnableNats    bool   `json:"enable_nats" env:"ENABLE_NATS" envDefault:"false"`
	EnableHttp    bool   `json:"enable_http" env:"ENABLE_HTTP" envDefault:"true"`

	RoomID   uint64 `json:"room_id" env:"ROOM_ID,required"`
	UID      uint64 `json:"uid" env:"UID" envDefault:"0"`
	SESSDATA string `json:"-" env:"SESSDATA"`

	PollInterval      time.Duration `json:"poll_interval" env:"POLL_INTERVAL" envDefault:"100ms"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" env:"HEARTBEAT_INTERVAL" envDefault:"20s"`
	GiftWindow        time.Duration `json:"gift_window" env:"GIFT_WINDOW" envDefault:"5s"`
	GiftRefresh       bool          `json:"gift_refresh" env:"GIFT_REFRESH" envDefault:"false"`
	SuperChatInterval time.Duration `json:"super_chat_interval" env:"SUPER_CHAT_INTERVAL" envDefault:"20s"`
	ReconnectDelay    time.Duration `json:"reconnect_delay" env:"RECONNECT_DELAY" envDefault:"5s"`
	MaxFailures       int           `json:"max_failures" env:"MAX_FAILURES" envDefault:"0"`
	DedupWindow       time.Duration `json:"dedup_window" env:"DEDUP_WINDOW" envDefault:"10m"`
	RequestTimeout    time.Duration `json:"request_timeout" env:"REQUEST_TIMEOUT" envDefault:"10s"`

	Console      bool     `json:"console" env:"CONSOLE" envDefault:"true"`
	ConsoleJSON  bool     `json:"console_json" env:"CONSOLE_JSON" envDefault:"false"`
	CombineGifts bool     `json:"combine_gifts" env:"COMBINE_GIFTS" envDefault:"true"`
	Ignore       []string `json:"ignore" env:"IGNORE" envSeparator:","`
	CaptureFile  string   `json:"capture_file" env:"CAPTURE_FILE"`
}

// Config is the optional yaml file, without it the room is resolved from the web api
type Config struct {
	Provider string                `json:"provider" yaml:"provider"` // api or static
	Static   *agent.StaticProvider `json:"static" yaml:"static"`
	UA       string                `json:"ua" yaml:"ua"`
}
