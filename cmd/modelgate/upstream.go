package main

import (
	"net"
	"net/http"
	"time"

	"github.com/Strob0t/modelgate/internal/adapter/agent"
	"github.com/Strob0t/modelgate/internal/adapter/ollama"
	cfotel "github.com/Strob0t/modelgate/internal/adapter/otel"
	"github.com/Strob0t/modelgate/internal/config"
	"github.com/Strob0t/modelgate/internal/domain/backend"
	"github.com/Strob0t/modelgate/internal/port/upstream"
)

// newTransport builds the pooled transport shared by every backend client
// and the agent proxy. It has no overall timeout since responses stream.
func newTransport(cfg config.Upstream) http.RoundTripper {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConnsPerHost * 8,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.IdleTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return cfotel.Transport(base)
}

// newClients returns one upstream client per wire protocol.
func newClients(transport http.RoundTripper) map[backend.Protocol]upstream.Client {
	hc := &http.Client{Transport: transport}
	return map[backend.Protocol]upstream.Client{
		backend.ProtocolNDJSONGenerate: ollama.NewClient(hc),
		backend.ProtocolSSEChat:        agent.NewClient(hc),
	}
}
