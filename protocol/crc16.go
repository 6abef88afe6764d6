package protocol

// CRC16Polynomial is the CRC-16/CCITT polynomial used by Xmodem
const CRC16Polynomial = 0x1021

// CRC16 calculates the Xmodem CRC-16 of data.
// The register starts at zero, each byte is folded into its high byte,
// and there is no final XOR.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ CRC16Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// SplitCRC returns the big-endian wire bytes of crc
func SplitCRC(crc uint16) (hi, lo byte) {
	return byte(crc >> 8), byte(crc)
}

// JoinCRC rebuilds a CRC from its big-endian wire bytes
func JoinCRC(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}
