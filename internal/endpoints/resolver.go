package endpoints

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var ErrNoRegion = errors.New("endpoints: region is required")

type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Resolver maps an AWS region to the streaming service endpoint.
type Resolver interface {
	Resolve(region string) (Endpoint, error)
}

type defaultResolver struct{}

// Default resolves the regional transcribe streaming endpoint.
func Default() Resolver {
	return defaultResolver{}
}

func (defaultResolver) Resolve(region string) (Endpoint, error) {
	if region == "" {
		return Endpoint{}, ErrNoRegion
	}
	return Endpoint{
		Host: fmt.Sprintf("transcribestreaming.%s.amazonaws.com", region),
		Port: 443,
	}, nil
}

// Static always resolves to a fixed endpoint, regardless of region.
// Useful for local stubs and VPC endpoints.
type Static struct {
	Endpoint Endpoint
}

func (s Static) Resolve(region string) (Endpoint, error) {
	if s.Endpoint.Host == "" {
		return Endpoint{}, errors.New("endpoints: static endpoint host is empty")
	}
	return s.Endpoint, nil
}
