package mavlink

const crcInit uint16 = 0xffff

func crcAccumulate(crc uint16, b byte) uint16 {
	tmp := b ^ byte(crc&0xff)
	tmp ^= tmp << 4
	t16 := uint16(tmp)
	return (crc >> 8) ^ (t16 << 8) ^ (t16 << 3) ^ (t16 >> 4)
}

// CRC computes X.25 checksum of data, starting with crc.
func CRC(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crcAccumulate(crc, b)
	}
	return crc
}
