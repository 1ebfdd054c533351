package mavlink

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/bluenviron/gomavlib/v3"
)

// ErrUnsupportedConnection is returned for connection strings that cannot be mapped to an endpoint
var ErrUnsupportedConnection = errors.New("unsupported connection string")

const defaultSerialBaud = 57600

// ParseConnection maps a connection string to a gomavlib endpoint.
//
//	tcp://host:port            TCP client
//	tcp://host:port?srv=true   TCP server
//	udp://host:port            UDP listener
//	udp://host:port?client=true
//	serial:/dev/ttyUSB0?br=57600
func ParseConnection(connection string) (gomavlib.EndpointConf, error) {
	u, err := url.Parse(connection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedConnection, err)
	}
	query := u.Query()

	switch u.Scheme {
	case "tcp":
		if err := checkAddress(u.Host); err != nil {
			return nil, err
		}
		if isTrue(query.Get("srv")) {
			return gomavlib.EndpointTCPServer{Address: u.Host}, nil
		}
		return gomavlib.EndpointTCPClient{Address: u.Host}, nil

	case "udp":
		if err := checkAddress(u.Host); err != nil {
			return nil, err
		}
		if isTrue(query.Get("client")) {
			return gomavlib.EndpointUDPClient{Address: u.Host}, nil
		}
		return gomavlib.EndpointUDPServer{Address: u.Host}, nil

	case "serial":
		dev := u.Opaque
		if dev == "" {
			dev = u.Path
		}
		if dev == "" {
			return nil, fmt.Errorf("%w: missing serial device in %q", ErrUnsupportedConnection, connection)
		}
		baud := defaultSerialBaud
		if br := query.Get("br"); br != "" {
			baud, err = strconv.Atoi(br)
			if err != nil || baud <= 0 {
				return nil, fmt.Errorf("%w: invalid baud rate %q", ErrUnsupportedConnection, br)
			}
		}
		return gomavlib.EndpointSerial{Device: dev, Baud: baud}, nil

	default:
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrUnsupportedConnection, u.Scheme)
	}
}

func checkAddress(hostport string) error {
	if hostport == "" {
		return fmt.Errorf("%w: missing address", ErrUnsupportedConnection)
	}
	_, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedConnection, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%w: invalid port %q", ErrUnsupportedConnection, port)
	}
	return nil
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
