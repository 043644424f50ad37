// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package eventpub

import (
	"net"
	"os"
)

// ProducerIP returns the first non-loopback IPv4 address of this host,
// preferring what the hostname resolves to. It falls back to 127.0.0.1.
func ProducerIP() string {
	if host, err := os.Hostname(); err == nil {
		if ips, err := net.LookupIP(host); err == nil {
			if ip := firstIPv4(ips); ip != "" {
				return ip
			}
		}
	}
	if addrs, err := net.InterfaceAddrs(); err == nil {
		var ips []net.IP
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				ips = append(ips, ipnet.IP)
			}
		}
		if ip := firstIPv4(ips); ip != "" {
			return ip
		}
	}
	return "127.0.0.1"
}

func firstIPv4(ips []net.IP) string {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() {
			return v4.String()
		}
	}
	return ""
}
