// Package netutil holds small networking helpers.
package netutil

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// GetAvailablePortForAddress returns a port on host that was free at the time
// of the call.
func GetAvailablePortForAddress(host string) (int32, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to listen on %s", host)
	}
	defer listener.Close()

	_, portString, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		return 0, err
	}

	port, err := strconv.ParseInt(portString, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid port %s", portString)
	}
	return int32(port), nil
}
