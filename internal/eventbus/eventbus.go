/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"

	"github.com/friendsincode/haulroster/internal/config"
	"github.com/friendsincode/haulroster/internal/events"
	"github.com/rs/zerolog"
)

// New builds the broker selected by cfg.EventBackend.
func New(cfg *config.Config, logger zerolog.Logger) (events.Broker, error) {
	nodeID := NewNodeID()
	switch cfg.EventBackend {
	case "", "memory":
		return events.NewBus(), nil
	case "redis":
		rc := DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		rc.ChannelPrefix = cfg.NATSSubjectPrefix
		return NewRedisBus(rc, nodeID, logger)
	case "nats":
		nc := DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		nc.SubjectPrefix = cfg.NATSSubjectPrefix
		return NewNATSBus(nc, nodeID, logger)
	default:
		return nil, fmt.Errorf("unknown event backend %q", cfg.EventBackend)
	}
}
