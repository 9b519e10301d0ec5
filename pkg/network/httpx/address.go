package httpx

import (
	"net"
	"strconv"
)

// mergeAddresses keeps the host of the configured address and the
// port the listener really bound, so a server asked for :8080 that
// rolled to :8081 advertises the right port. Well-known http ports
// are left off.
func mergeAddresses(address string, l Listener) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	if host == "" {
		host = "localhost"
	}
	if port := l.GetPort(); port > 0 && port != 80 && port != 443 {
		host += ":" + strconv.Itoa(port)
	}
	return host
}
