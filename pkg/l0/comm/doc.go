// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between L0 firmware (a base node) and the
// L1 host over a peer-to-peer byte stream (e.g. serial port).
//
// Every frame starts with the marker "|||" followed by a 2-byte packet id
// and a 1-byte packet type. Only DATA packets carry a body:
//
//	'|' '|' '|' | id (LE16) | type | len (LE16) | payload | crc (LE16)
//
// The CRC is CRC-16/CCITT-FALSE over type, len and payload.
// Frames are reassembled by Parser one byte at a time, which allows the
// host to resynchronize on the marker after any transfer error.
//
// Producer: L0 firmware
// Consumer: L1 host
