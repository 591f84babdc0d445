package enrichment

import "net"

// ClassifyIP buckets a visitor address without any external lookup.
func ClassifyIP(ipAddress string) string {
	ip := net.ParseIP(ipAddress)
	switch {
	case ip == nil:
		return "unknown"
	case ip.IsLoopback():
		return "loopback"
	case ip.IsPrivate():
		return "private"
	default:
		return "public"
	}
}
