package bootstrap

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/eleven-am/transcribe-stream/internal/endpoints"
	"github.com/eleven-am/transcribe-stream/internal/transport"
	"github.com/eleven-am/transcribe-stream/transcribe"
	"go.uber.org/fx"
)

func ProvideTranscribeClient(cfg *Config) (*transcribe.Client, error) {
	clientCfg := transcribe.Config{
		Region: cfg.AWSRegion,
		Logger: slog.Default(),
	}
	if cfg.UseWebSocket {
		clientCfg.Transport = transport.NewWebSocket(slog.Default())
	} else {
		clientCfg.Transport = transport.NewHTTP2(slog.Default())
	}
	if cfg.EndpointOverride != "" {
		ep, err := parseEndpoint(cfg.EndpointOverride)
		if err != nil {
			return nil, err
		}
		clientCfg.Endpoints = endpoints.Static{Endpoint: ep}
	}
	return transcribe.New(clientCfg)
}

var ClientModule = fx.Options(
	fx.Provide(ProvideTranscribeClient),
)

// parseEndpoint accepts "host" or "host:port"; the port defaults to 443.
func parseEndpoint(value string) (endpoints.Endpoint, error) {
	host, portStr, err := net.SplitHostPort(value)
	if err != nil {
		return endpoints.Endpoint{Host: value, Port: 443}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return endpoints.Endpoint{}, fmt.Errorf("bootstrap: invalid endpoint port %q", portStr)
	}
	return endpoints.Endpoint{Host: host, Port: port}, nil
}
