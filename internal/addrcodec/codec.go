// Package addrcodec converts execution endpoint addresses to and from the
// token embedded in shareable executor links.
package addrcodec

import (
	"encoding/base64"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	// ExecutionPort is the fixed port every execution server listens on.
	ExecutionPort = 7890
	// ExecutionPath is the sub-path dedicated to code execution.
	ExecutionPath = "/Execute"
)

// Encode returns the link token for address.
func Encode(address string) string {
	return base64.StdEncoding.EncodeToString([]byte(address))
}

// Decode is the inverse of Encode. It never fails: tokens that are not valid
// base64 decode to whatever prefix could be recovered, which later fails to
// connect instead of breaking the caller.
func Decode(token string) string {
	t := strings.TrimSpace(token)
	if unescaped, err := url.PathUnescape(t); err == nil {
		t = unescaped
	}
	if b, err := base64.StdEncoding.DecodeString(t); err == nil {
		return string(b)
	}

	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(t)
	normalized = strings.TrimRight(normalized, "=")
	b, _ := base64.RawStdEncoding.DecodeString(normalized)
	return string(b)
}

// EndpointURL builds the websocket URL of the execution endpoint for a
// decoded address. Empty and garbage addresses are passed through as-is.
func EndpointURL(address string) string {
	host := address
	if strings.Contains(address, ":") && !strings.HasPrefix(address, "[") {
		if ip := net.ParseIP(address); ip != nil && ip.To4() == nil {
			host = "[" + address + "]"
		}
	}
	return "ws://" + host + ":" + strconv.Itoa(ExecutionPort) + ExecutionPath
}
