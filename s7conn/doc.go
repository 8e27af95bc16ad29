// Package s7conn implements the connection to a Siemens S7 device: the
// handshake state machine, on-demand reconnects and typed request helpers on
// top of package link.
//
// A connection is created from a ConnectionConfig and is connected lazily:
//
//	cfg, err := s7conn.NewConnectionConfig(s7.S7_1200, s7.Tcp, "192.168.0.10",
//		s7conn.WithTimeout(2*time.Second),
//	)
//	conn, err := s7conn.NewConnection(cfg)
//	data, err := conn.ReadBytes(ctx, "DB1 0", 16)
//
// The handshake walks Disconnected, TransportConnecting, ReferenceEstablishing,
// AssociationEstablishing and Ready. On TCP the reference is the ISO connection
// request and the association negotiates the PDU size. On PPI (S7-200 family
// only) the reference is the link request and the association is its confirm.
// Any failure closes the transport and returns to Disconnected.
//
// Requests on a connection that is not Ready trigger a handshake first.
// Consecutive automatic reconnects are capped (WithMaxReconnectAttempts); an
// explicit Connect is always attempted and resets the count on success.
package s7conn
