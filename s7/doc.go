// Package s7 holds the Siemens side of the protocol: symbolic address
// translation, the S7comm and PPI message layouts, access-result and error-class
// tables, and the per device family handshake profiles.
//
// Every message kind is a pair of pure functions. Ethernet messages start with a
// 7-byte placeholder that the TPKT framing (see package link) overwrites, so the
// S7 PDU always begins at offset 7 of a formatted message and at offset 0 of a
// deframed response:
//
//	in := s7.NewReadRequestInput(ref, s7.MustTranslateAddress("DB1 100"), s7.Byte, 4)
//	frame, err := s7.KindRead.Format(in)
//	// ... link.Linker.SendReceive(ctx, frame) ...
//	out, err := s7.UnformatReadRequest(payload)
//
// For PPI the same frames are wrapped with SealPPI, which replaces the
// placeholder by the SD2 envelope, so offsets are identical on both transports.
package s7
