package protocol2

// Stuff returns a transmittable copy of frame: an extra 0xFD follows every
// FF FF FD sequence in the instruction and parameter region, the length field
// is rewritten and the CRC is recomputed over the stuffed bytes.
// frame is not modified.
func Stuff(frame []byte) []byte {
	region := frame[offInstruction : len(frame)-crcSize]

	out := make([]byte, 0, len(frame)+len(region)/3)
	out = append(out, frame[:offInstruction]...)
	for i, b := range region {
		out = append(out, b)
		if b == stuffByte && i >= 2 && region[i-1] == header[1] && region[i-2] == header[0] {
			out = append(out, stuffByte)
		}
	}
	out = append(out, 0, 0)
	setFrameLength(out, len(out)-headerSize)
	putCRC(out)

	return out
}

// Destuff returns frame with the escape byte of every FF FF FD FD sequence in
// the instruction/error and parameter region removed, and the length field
// rewritten. The CRC field is copied as received, so it only matches the
// stuffed form; verify it before destuffing. frame is not modified.
func Destuff(frame []byte) []byte {
	region := frame[offInstruction : len(frame)-crcSize]

	out := make([]byte, 0, len(frame))
	out = append(out, frame[:offInstruction]...)
	for i, b := range region {
		if isEscape(region, i) {
			continue
		}
		out = append(out, b)
	}
	out = append(out, frame[len(frame)-crcSize:]...)
	setFrameLength(out, len(out)-headerSize)

	return out
}

// isEscape reports whether region[i] is the inserted byte of a stuffed false
// header: FF FF FD FD with region[i] being the first FD of the pair.
func isEscape(region []byte, i int) bool {
	return i >= 2 && i+1 < len(region) &&
		region[i] == stuffByte && region[i+1] == stuffByte &&
		region[i-1] == header[1] && region[i-2] == header[0]
}
