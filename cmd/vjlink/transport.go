package main

import (
	"log/slog"
	"net/http"

	"vjlink/internal/config"
	"vjlink/internal/transport"
)

// newReceiverTransport builds the visual-side transport. With the socket
// backend the receiver hosts the websocket hub; the returned handler is
// mounted on /ws by the admin server. With mirroring enabled, critical
// messages are duplicated over a store fallback.
func newReceiverTransport(cfg *config.Config, log *slog.Logger) (transport.Transport, http.Handler) {
	if cfg.Transport.Backend == "socket" {
		hub := transport.NewHub(log)
		var tr transport.Transport = hub
		if cfg.Transport.Mirror {
			store := transport.NewStore(cfg.Transport.StoreDir, cfg.Channel, transport.RoleVisual, cfg.Transport.PollInterval(), log)
			tr = transport.NewMirror(hub, store)
		}
		return tr, http.HandlerFunc(hub.Handle)
	}
	return transport.NewStore(cfg.Transport.StoreDir, cfg.Channel, transport.RoleVisual, cfg.Transport.PollInterval(), log), nil
}

// newControlTransport builds the control-side transport. With the socket
// backend it dials the receiver's /ws endpoint.
func newControlTransport(cfg *config.Config, log *slog.Logger) (transport.Transport, error) {
	store := func() *transport.Store {
		return transport.NewStore(cfg.Transport.StoreDir, cfg.Channel, transport.RoleControl, cfg.Transport.PollInterval(), log)
	}
	if cfg.Transport.Backend == "socket" {
		sock, err := transport.DialSocket(cfg.Transport.SocketURL, log)
		if err != nil {
			return nil, err
		}
		if cfg.Transport.Mirror {
			return transport.NewMirror(sock, store()), nil
		}
		return sock, nil
	}
	return store(), nil
}
