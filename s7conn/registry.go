package s7conn

import (
	"errors"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds named connections, e.g. one per configured device.
type Registry struct {
	conns *xsync.MapOf[string, *Connection]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: xsync.NewMapOf[string, *Connection]()}
}

// LoadOrCreate returns the connection registered under name, or creates one
// from cfg and registers it. loaded reports whether it already existed.
func (r *Registry) LoadOrCreate(name string, cfg *ConnectionConfig, handlers ...ConnStateChangeHandler) (conn *Connection, loaded bool, err error) {
	if conn, ok := r.conns.Load(name); ok {
		return conn, true, nil
	}

	conn, err = NewConnection(cfg, handlers...)
	if err != nil {
		return nil, false, err
	}

	// a concurrent caller may have won; its connection is kept and ours,
	// never connected, is dropped
	actual, loaded := r.conns.LoadOrStore(name, conn)

	return actual, loaded, nil
}

// Get returns the connection registered under name.
func (r *Registry) Get(name string) (*Connection, bool) {
	return r.conns.Load(name)
}

// Remove unregisters and closes the connection registered under name.
func (r *Registry) Remove(name string) error {
	conn, ok := r.conns.LoadAndDelete(name)
	if !ok {
		return nil
	}

	return conn.Close()
}

// Range calls f for each connection until f returns false.
func (r *Registry) Range(f func(name string, conn *Connection) bool) {
	r.conns.Range(f)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return r.conns.Size()
}

// Close closes and unregisters every connection.
func (r *Registry) Close() error {
	var errs []error
	r.conns.Range(func(name string, conn *Connection) bool {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		r.conns.Delete(name)

		return true
	})

	return errors.Join(errs...)
}
