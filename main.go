package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/agent"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/capture"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/client"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/metrics"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/pb"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/sink"
	"github.com/TiyaAnlite/FocotServicesCommon/echox"
	"github.com/TiyaAnlite/FocotServicesCommon/envx"
	"github.com/TiyaAnlite/FocotServicesCommon/natsx"
	"github.com/TiyaAnlite/FocotServicesCommon/utils"
	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

var (
	envCfg = &envConfig{}
	cfg    = &Config{}
	mq     = &natsx.NatsHelper{}
	ctx    *AppContext
	worker = &sync.WaitGroup{}
)

func init() {
	testing.Init()
	klog.InitFlags(nil)
	flag.Parse()
}

func loadConfig() {
	envx.MustLoadEnv(envCfg)
	if fileutil.IsExist(envCfg.ConfigFile) {
		envx.MustReadYamlConfig(cfg, envCfg.ConfigFile)
	}
}

func main() {
	loadConfig()
	if err := run(); err != nil {
		klog.Errorf("agent stopped: %s", err.Error())
		klog.Flush()
		os.Exit(1)
	}
	klog.Info("done")
}

// run returns once the agent stops, deferred closers have run by then
func run() error {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = &AppContext{
		Context:  rootCtx,
		Worker:   worker,
		Registry: prometheus.NewRegistry(),
	}
	if envCfg.EnableNats {
		if err := mq.Open(envCfg.NatsConfig); err != nil {
			klog.Fatalf("Cannot connect to NATS: %s", err.Error())
		}
		defer mq.Close()
		ctx.MQ = mq
		klog.Infof("using subject prefix: %s", envCfg.SubjectPrefix)
	}

	exporter, err := metrics.NewMetricsExporter(ctx.Registry, envCfg.RoomID)
	if err != nil {
		klog.Fatalf("Cannot register metrics: %s", err.Error())
	}
	dedup, err := agent.NewDedup(rootCtx, envCfg.DedupWindow)
	if err != nil {
		klog.Fatalf("%s", err.Error())
	}
	dispatcher := agent.NewDispatcher(dedup, nil, exporter, sinkInit()...)
	ctx.Status = dispatcher.Status()

	dialer, closeCapture := dialerInit()
	defer closeCapture()
	runner := agent.NewRunner(providerInit(), dialer, agent.Config{
		Client: client.Config{
			HeartbeatInterval: envCfg.HeartbeatInterval,
			GiftWindow:        envCfg.GiftWindow,
			GiftRefresh:       envCfg.GiftRefresh,
			SuperChatInterval: envCfg.SuperChatInterval,
		},
		PollInterval:   envCfg.PollInterval,
		ReconnectDelay: envCfg.ReconnectDelay,
		MaxFailures:    envCfg.MaxFailures,
	}, dispatcher)

	if envCfg.EnableHttp {
		go echox.Run(&envCfg.EchoConfig, setupRoutes)
	}
	if ctx.MQ != nil {
		controlInit()
	}

	var runErr error
	worker.Add(1)
	go func() {
		defer worker.Done()
		runErr = runner.Run(rootCtx)
		cancel()
	}()
	go waiter(rootCtx, cancel)
	klog.Info("fire...")
	worker.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func waiter(c context.Context, cancel context.CancelFunc) {
	exit := make(chan struct{})
	go func() {
		utils.Wait4CtrlC()
		close(exit)
	}()
	select {
	case <-exit:
		klog.Info("exiting...")
		cancel()
	case <-c.Done():
	}
}

func setupRoutes(e *echo.Echo) {
	ctx.Echo = e
	metrics.SetupRoutes(e, ctx.Registry, func() any {
		return ctx.Status.Snapshot()
	})
}

func sinkInit() []sink.Sink {
	var sinks []sink.Sink
	if envCfg.Console {
		console := sink.NewConsole(os.Stdout, envCfg.Ignore...)
		console.JSON = envCfg.ConsoleJSON
		console.CombineGifts = envCfg.CombineGifts
		sinks = append(sinks, console)
	}
	if ctx.MQ != nil {
		sinks = append(sinks, sink.NewNATS(ctx.MQ.Nc, envCfg.SubjectPrefix, pb.NewMsgMetaBuilder(envCfg.AgentId, envCfg.RoomID)))
	}
	if len(sinks) == 0 {
		klog.Warning("no sink enabled, events are only counted")
	}
	return sinks
}

func dialerInit() (client.Dialer, func()) {
	var dialer client.Dialer = &client.WSDialer{}
	if envCfg.CaptureFile == "" {
		return dialer, func() {}
	}
	w, err := capture.Create(envCfg.CaptureFile)
	if err != nil {
		klog.Fatalf("%s", err.Error())
	}
	klog.Infof("capturing received frames to %s", envCfg.CaptureFile)
	return &capture.Dialer{Dialer: dialer, Writer: w}, func() {
		if err := w.Close(); err != nil {
			klog.Errorf("close capture file: %s", err.Error())
		}
	}
}

// controlInit answers status requests on [prefix].agent.[id].status
func controlInit() {
	subject := fmt.Sprintf("%s.agent.%s.status", envCfg.SubjectPrefix, envCfg.AgentId)
	sub, err := ctx.MQ.Nc.Subscribe(subject, func(msg *nats.Msg) {
		status, err := ctx.StatusMap()
		if err != nil {
			_ = pb.ControlError(msg, err)
			return
		}
		if err := pb.ControlSuccess(msg, status); err != nil {
			klog.Errorf("response control msg failed: %s", err.Error())
		}
	})
	if err != nil {
		klog.Fatalf("subscribe control subject failed: %s", err.Error())
	}
	ctx.MQ.AddSubscribe(sub)
}
