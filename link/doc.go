// Package link moves S7 frames over a byte stream.
//
// A Linker composes a Transport (TCP socket or serial port) with a Framing
// (TPKT/COTP for ISO-on-TCP, or the PPI envelope for S7-200 serial ports):
//
//	tr := link.NewTCPTransport("192.168.0.10", 3*time.Second, log)
//	lk := link.NewLinker(tr, link.TCPFraming{}, log)
//	payload, err := lk.SendReceive(ctx, frame)
//
// SendReceive extends the outgoing unit with the framing header, performs one
// request/response exchange, lets the framing recover transient conditions (PPI
// bus busy and deferred replies), validates the response and strips the framing
// again. SendReceiveRaw sends an already complete frame and returns the
// validated response unchanged; the handshake units use it.
//
// Exchanges on one Linker are serialized.
package link
