package main

import (
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/agent"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/room"
	"k8s.io/klog/v2"
)

func providerInit() agent.SessionProvider {
	switch cfg.Provider {
	case "static":
		if cfg.Static == nil || len(cfg.Static.Hosts) == 0 {
			klog.Fatalf("static provider needs at least one host in %s", envCfg.ConfigFile)
		}
		if cfg.Static.RoomID == 0 {
			cfg.Static.RoomID = envCfg.RoomID
		}
		if cfg.Static.UID == 0 {
			cfg.Static.UID = envCfg.UID
		}
		klog.Infof("[StaticProvider]room %d with %d hosts", cfg.Static.RoomID, len(cfg.Static.Hosts))
		return cfg.Static
	case "", "api":
		resolver := room.NewResolver(envCfg.SESSDATA, envCfg.RequestTimeout)
		resolver.UserAgent = cfg.UA
		return &agent.ApiProvider{Resolver: resolver, RoomID: envCfg.RoomID, UID: envCfg.UID}
	}
	klog.Fatalf("unknown provider: %s", cfg.Provider)
	return nil
}
