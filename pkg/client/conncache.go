package client

import "net"

// connCache holds at most one reusable connection per key. Keys look like
// "http://host:port", "https://host:port", or "connect://host:port" for
// proxy tunnels. Lookups check the connection out: the entry is removed and
// only re-inserted after a keep-alive exchange completes on a live socket,
// so two dispatches never share one socket.
type connCache struct {
	conns map[string]net.Conn
}

func newConnCache() *connCache {
	return &connCache{conns: map[string]net.Conn{}}
}

// checkOut removes and returns the cached connection for the key, if any.
func (c *connCache) checkOut(key string) (net.Conn, bool) {
	conn, ok := c.conns[key]
	if ok {
		delete(c.conns, key)
	}
	return conn, ok
}

// checkIn stores a connection for reuse. A displaced connection is closed.
func (c *connCache) checkIn(key string, conn net.Conn) {
	if old, ok := c.conns[key]; ok {
		old.Close()
	}
	c.conns[key] = conn
}

// closeAll closes and forgets every cached connection.
func (c *connCache) closeAll() {
	for key, conn := range c.conns {
		conn.Close()
		delete(c.conns, key)
	}
}

func (c *connCache) len() int {
	return len(c.conns)
}
