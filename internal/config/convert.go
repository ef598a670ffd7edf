package config

import (
	"github.com/danmuck/gatewatch/internal/gateway"
	"github.com/danmuck/gatewatch/internal/heartbeat"
	"github.com/danmuck/gatewatch/internal/orders"
)

func (c Config) EngineConfig() orders.Config {
	return orders.Config{
		MaxOrders:         c.Orders.MaxOrders,
		CorrelationWindow: c.Orders.CorrelationWindow.Duration,
	}
}

func (c Config) MonitorConfig() heartbeat.Config {
	return heartbeat.Config{
		Interval:  c.Heartbeat.Interval.Duration,
		Tolerance: c.Heartbeat.Tolerance.Duration,
	}
}

func (c Config) SessionConfig() gateway.SessionConfig {
	return gateway.SessionConfig{
		Address:     c.Gateway.Address,
		DialTimeout: c.Gateway.DialTimeout.Duration,
	}
}
