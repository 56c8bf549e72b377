package sqld

import (
	"log/slog"
)

// DefaultURI is a shared-cache connection to an in-memory database.
const DefaultURI = "file:mem?mode=memory&cache=shared"

// MemoryURI returns a shared-cache in-memory database URI for name.
// Connections opened with the same name see the same database.
func MemoryURI(name string) string {
	return "file:" + name + "?mode=memory&cache=shared"
}

// noCopy makes go vet's copylocks check flag copies of a Conn.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Conn owns one engine connection.
//
// A Conn is used through a pointer and never copied: its identity is the
// engine handle. Once opened or reopened it is safe for concurrent use by
// goroutines driving their own Streams. Reopen is not.
type Conn struct {
	noCopy noCopy
	handle engineConn
}

// Open opens a connection for uri. An empty uri means DefaultURI.
// The URI is passed to the engine untouched.
func Open(uri string) (*Conn, error) {
	c := &Conn{}
	if err := c.open(uri); err != nil {
		return nil, err
	}
	return c, nil
}

// Reopen closes the current handle, if any, and opens uri in its place.
// An empty uri means DefaultURI.
//
// Reopen is not safe to call while any statement is running on c.
func (c *Conn) Reopen(uri string) error {
	if err := c.Close(); err != nil {
		return err
	}
	return c.open(uri)
}

// Close releases the engine handle. Closing a closed Conn is a no-op.
func (c *Conn) Close() error {
	if c.handle == nil {
		return nil
	}
	h := c.handle
	c.handle = nil
	if err := h.close(); err != nil {
		return engineError("close", err)
	}
	slog.Debug("connection closed")
	return nil
}

// IsOpen reports whether c holds an engine handle.
func (c *Conn) IsOpen() bool {
	return c.handle != nil
}

func (c *Conn) open(uri string) error {
	if uri == "" {
		uri = DefaultURI
	}
	h, err := openEngine(uri)
	if err != nil {
		return engineError("open", err)
	}
	c.handle = h
	slog.Debug("connection opened", "uri", uri)
	return nil
}
