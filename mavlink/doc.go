// Package mavlink is the reference wire codec for the uaslink transport.
//
// Frames use MAVLink v1 layout:
//
//	0xFE | len | seq | sysid | compid | msgid | payload[len] | crc16 (little endian)
//
// CRC is X.25 (CRC-16/MCRF4XX) over len..payload followed by per-message CRC_EXTRA byte.
// Frames sent over insecure channel may carry 8 byte authentication trailer,
// HMAC-SHA256 prefix over the whole frame, see AppendAuth.
package mavlink
