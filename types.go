package main

import (
	"context"
	"sync"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/agent"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/pb"
	"github.com/TiyaAnlite/FocotServicesCommon/natsx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// AppContext stored global context, concurrent information, web server, metrics and bus for needed
type AppContext struct {
	Context  context.Context
	Worker   *sync.WaitGroup
	Registry *prometheus.Registry
	Echo     *echo.Echo
	MQ       *natsx.NatsHelper
	Status   *agent.Status
}

func (c *AppContext) StatusMap() (map[string]any, error) {
	return pb.AsMap(c.Status.Snapshot())
}
