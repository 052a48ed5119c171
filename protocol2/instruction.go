package protocol2

import (
	"encoding/binary"
	"fmt"
)

// ResetOption selects what a factory reset preserves.
type ResetOption byte

// Factory reset options.
const (
	ResetAll          ResetOption = 0xFF
	ResetExceptID     ResetOption = 0x01
	ResetExceptIDBaud ResetOption = 0x02
)

// clearMultiTurnParams is the fixed parameter block of a Clear instruction
// that resets the multi-turn position counter.
var clearMultiTurnParams = []byte{0x01, 0x44, 0x58, 0x4C, 0x22}

// Instruction is an instruction packet before stuffing.
type Instruction struct {
	ID     byte
	Opcode Opcode
	Params []byte

	// waitLength is the number of status bytes the packet timeout is sized
	// for. Zero means one parameterless status frame.
	waitLength int
}

// Frame returns the unstuffed frame with its CRC.
func (in *Instruction) Frame() []byte {
	return buildFrame(in.ID, in.Opcode, in.Params)
}

// Encode returns the stuffed frame ready for transmission. It fails with
// TxError if the stuffed frame exceeds MaxFrameLength.
func (in *Instruction) Encode() ([]byte, error) {
	if len(in.Params)+minInstructionLength > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d parameter bytes exceed the frame limit", TxError, len(in.Params))
	}

	frame := Stuff(in.Frame())
	if len(frame) > MaxFrameLength {
		return nil, fmt.Errorf("%w: stuffed frame is %d bytes", TxError, len(frame))
	}

	return frame, nil
}

// WaitLength returns the status byte count used to size the packet timeout.
func (in *Instruction) WaitLength() int {
	if in.waitLength <= 0 {
		return minStatusLength
	}

	return in.waitLength
}

// ExpectsStatus reports whether a status frame answers the instruction.
// Broadcast instructions and Action are never answered.
func (in *Instruction) ExpectsStatus() bool {
	return in.ID != BroadcastID && in.Opcode != OpAction
}

func (in *Instruction) String() string {
	return fmt.Sprintf("%s id=%d params=%d", in.Opcode, in.ID, len(in.Params))
}

// NewPing builds a Ping to id. Use BroadcastID to ping every device.
func NewPing(id byte) *Instruction {
	return &Instruction{ID: id, Opcode: OpPing}
}

// NewRead builds a Read of length bytes at addr.
func NewRead(id byte, addr, length uint16) *Instruction {
	return &Instruction{
		ID:         id,
		Opcode:     OpRead,
		Params:     binary.LittleEndian.AppendUint16(le16(addr), length),
		waitLength: int(length) + minStatusLength,
	}
}

// NewWrite builds a Write of data at addr.
func NewWrite(id byte, addr uint16, data []byte) *Instruction {
	return &Instruction{ID: id, Opcode: OpWrite, Params: append(le16(addr), data...)}
}

// NewRegWrite builds a RegWrite of data at addr, held by the device until an
// Action.
func NewRegWrite(id byte, addr uint16, data []byte) *Instruction {
	return &Instruction{ID: id, Opcode: OpRegWrite, Params: append(le16(addr), data...)}
}

// NewAction builds an Action that applies pending RegWrites.
func NewAction(id byte) *Instruction {
	return &Instruction{ID: id, Opcode: OpAction}
}

// NewReboot builds a Reboot.
func NewReboot(id byte) *Instruction {
	return &Instruction{ID: id, Opcode: OpReboot}
}

// NewFactoryReset builds a FactoryReset with the given option.
func NewFactoryReset(id byte, option ResetOption) *Instruction {
	return &Instruction{ID: id, Opcode: OpFactoryReset, Params: []byte{byte(option)}}
}

// NewClearMultiTurn builds a Clear that resets the multi-turn counter.
func NewClearMultiTurn(id byte) *Instruction {
	return &Instruction{ID: id, Opcode: OpClear, Params: append([]byte(nil), clearMultiTurnParams...)}
}

// NewSyncRead builds a broadcast SyncRead of length bytes at addr from every
// device in ids.
func NewSyncRead(addr, length uint16, ids []byte) (*Instruction, error) {
	if err := checkIDs(ids); err != nil {
		return nil, err
	}

	params := make([]byte, 0, 4+len(ids))
	params = binary.LittleEndian.AppendUint16(params, addr)
	params = binary.LittleEndian.AppendUint16(params, length)
	params = append(params, ids...)

	return &Instruction{
		ID:         BroadcastID,
		Opcode:     OpSyncRead,
		Params:     params,
		waitLength: (minStatusLength + int(length)) * len(ids),
	}, nil
}

// SyncWriteRecord is one device's data in a SyncWrite.
type SyncWriteRecord struct {
	ID   byte
	Data []byte
}

// NewSyncWrite builds a broadcast SyncWrite of length bytes at addr. Every
// record must carry exactly length bytes.
func NewSyncWrite(addr, length uint16, records []SyncWriteRecord) (*Instruction, error) {
	ids := make([]byte, len(records))
	for i, rec := range records {
		if len(rec.Data) != int(length) {
			return nil, fmt.Errorf("%w: sync write data for id %d is %d bytes, want %d",
				TxError, rec.ID, len(rec.Data), length)
		}
		ids[i] = rec.ID
	}
	if err := checkIDs(ids); err != nil {
		return nil, err
	}

	params := make([]byte, 0, 4+len(records)*(1+int(length)))
	params = binary.LittleEndian.AppendUint16(params, addr)
	params = binary.LittleEndian.AppendUint16(params, length)
	for _, rec := range records {
		params = append(params, rec.ID)
		params = append(params, rec.Data...)
	}

	return &Instruction{ID: BroadcastID, Opcode: OpSyncWrite, Params: params}, nil
}

// BulkReadRecord addresses one device's register range in a BulkRead.
type BulkReadRecord struct {
	ID     byte
	Addr   uint16
	Length uint16
}

// NewBulkRead builds a broadcast BulkRead.
func NewBulkRead(records []BulkReadRecord) (*Instruction, error) {
	ids := make([]byte, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := checkIDs(ids); err != nil {
		return nil, err
	}

	params := make([]byte, 0, 5*len(records))
	wait := 0
	for _, rec := range records {
		params = append(params, rec.ID)
		params = binary.LittleEndian.AppendUint16(params, rec.Addr)
		params = binary.LittleEndian.AppendUint16(params, rec.Length)
		wait += int(rec.Length) + minStatusLength - 1
	}

	return &Instruction{ID: BroadcastID, Opcode: OpBulkRead, Params: params, waitLength: wait}, nil
}

// BulkWriteRecord is one device's register write in a BulkWrite.
type BulkWriteRecord struct {
	ID   byte
	Addr uint16
	Data []byte
}

// NewBulkWrite builds a broadcast BulkWrite.
func NewBulkWrite(records []BulkWriteRecord) (*Instruction, error) {
	ids := make([]byte, len(records))
	size := 0
	for i, rec := range records {
		if len(rec.Data) > 0xFFFF {
			return nil, fmt.Errorf("%w: bulk write data for id %d is %d bytes", TxError, rec.ID, len(rec.Data))
		}
		ids[i] = rec.ID
		size += 5 + len(rec.Data)
	}
	if err := checkIDs(ids); err != nil {
		return nil, err
	}

	params := make([]byte, 0, size)
	for _, rec := range records {
		params = append(params, rec.ID)
		params = binary.LittleEndian.AppendUint16(params, rec.Addr)
		params = binary.LittleEndian.AppendUint16(params, uint16(len(rec.Data)))
		params = append(params, rec.Data...)
	}

	return &Instruction{ID: BroadcastID, Opcode: OpBulkWrite, Params: params}, nil
}

// checkIDs validates the device list of a multi-device instruction.
func checkIDs(ids []byte) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no device ids", TxError)
	}

	var seen [256]bool
	for _, id := range ids {
		if id > MaxID {
			return fmt.Errorf("%w: device id %d out of range", TxError, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate device id %d", TxError, id)
		}
		seen[id] = true
	}

	return nil
}

func le16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(make([]byte, 0, 2), v)
}
