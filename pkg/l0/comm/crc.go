package comm

import (
	"encoding/binary"

	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// ComputeCRC calculates the frame checksum over type, length and payload.
func ComputeCRC(typ PacketType, data []byte) uint16 {
	crc := crcHeader(crc16.Init(crcTable), typ, uint16(len(data)))
	crc = crc16.Update(crc, data, crcTable)
	return crc16.Complete(crc, crcTable)
}

func crcHeader(crc uint16, typ PacketType, size uint16) uint16 {
	var head [3]byte
	head[0] = byte(typ)
	binary.LittleEndian.PutUint16(head[1:], size)
	return crc16.Update(crc, head[:], crcTable)
}
