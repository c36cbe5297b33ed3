package socketio

import (
	"net"
	"net/netip"
	"slices"
	"strings"
	"sync"
)

// ConnectionLimiter caps concurrent UI clients connecting from other hosts.
// Loopback clients are never limited. When a new remote client exceeds the
// cap, the oldest remote client is evicted.
type ConnectionLimiter struct {
	mu        sync.Mutex
	maxRemote int
	remote    []string          // oldest first
	clients   map[string]string // client id -> remote address
}

// NewConnectionLimiter creates a limiter. maxRemote <= 0 disables the cap.
func NewConnectionLimiter(maxRemote int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxRemote: maxRemote,
		clients:   make(map[string]string),
	}
}

// Admit registers a client and returns the id of a client to evict, if any.
func (cl *ConnectionLimiter) Admit(clientID, remoteAddr string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.clients[clientID]; ok {
		return ""
	}
	cl.clients[clientID] = remoteAddr

	if isLoopback(remoteAddr) {
		return ""
	}
	cl.remote = append(cl.remote, clientID)

	if cl.maxRemote > 0 && len(cl.remote) > cl.maxRemote {
		evictedID = cl.remote[0]
		cl.remote = cl.remote[1:]
		delete(cl.clients, evictedID)
	}
	return evictedID
}

// Remove forgets a client.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.clients[clientID]; !ok {
		return
	}
	delete(cl.clients, clientID)
	cl.remote = slices.DeleteFunc(cl.remote, func(id string) bool { return id == clientID })
}

// Len returns the number of tracked clients.
func (cl *ConnectionLimiter) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.clients)
}

// isLoopback reports whether addr, with or without a port, is a loopback address.
func isLoopback(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	return ip.Unmap().IsLoopback()
}
