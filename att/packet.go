package att

import (
	"encoding/binary"
	"fmt"
	"time"
)

// PDU is implemented by every decoded ATT payload type. Opcode identifies
// which wire shape produced it.
type PDU interface {
	Opcode() uint8
}

// Message is a parsed ATT PDU plus the classification and timestamp the
// reader loop and request pipeline need for dispatch.
type Message struct {
	PDU       PDU
	CreatedAt time.Time
}

// Kind classifies the wrapped PDU for dispatch (see ClassifyOpcode).
func (m Message) Kind() Kind { return ClassifyOpcode(m.PDU.Opcode()) }

// --- opcode-specific payloads -------------------------------------------------

// Undefined wraps a PDU whose opcode this codec does not recognise. It is
// kept as an opaque blob so a caller can log and discard it rather than
// fail the whole read.
type Undefined struct {
	RawOpcode uint8
	Raw       []byte
}

func (u *Undefined) Opcode() uint8 { return u.RawOpcode }

// ErrorResponse (0x01).
type ErrorResponse struct {
	RequestOpcode uint8
	Handle        uint16
	ErrorCode     uint8
}

func (*ErrorResponse) Opcode() uint8 { return OpErrorResponse }

// ExchangeMTURequest/Response (0x02/0x03).
type ExchangeMTURequest struct{ ClientRxMTU uint16 }
type ExchangeMTUResponse struct{ ServerRxMTU uint16 }

func (*ExchangeMTURequest) Opcode() uint8  { return OpExchangeMTURequest }
func (*ExchangeMTUResponse) Opcode() uint8 { return OpExchangeMTUResponse }

// FindInformationRequest/Response (0x04/0x05).
type FindInformationRequest struct {
	StartHandle, EndHandle uint16
}

// FindInformationResponse carries a Format byte (0x01 = 16-bit UUIDs, 0x02 =
// 128-bit UUIDs) followed by (handle, uuid) elements. Use the element
// accessors below instead of reading Data directly.
type FindInformationResponse struct {
	Format uint8
	Data   []byte
}

func (*FindInformationRequest) Opcode() uint8  { return OpFindInformationRequest }
func (*FindInformationResponse) Opcode() uint8 { return OpFindInformationResponse }

// ReadByTypeRequest/Response (0x08/0x09).
type ReadByTypeRequest struct {
	StartHandle, EndHandle uint16
	Type                   UUID
}

// ReadByTypeResponse carries a per-element Length byte followed by
// (declHandle, properties, valueHandle, uuid) elements.
type ReadByTypeResponse struct {
	Length        uint8
	AttributeData []byte
}

func (*ReadByTypeRequest) Opcode() uint8  { return OpReadByTypeRequest }
func (*ReadByTypeResponse) Opcode() uint8 { return OpReadByTypeResponse }

// ReadByGroupTypeRequest/Response (0x10/0x11) — used for service discovery.
type ReadByGroupTypeRequest struct {
	StartHandle, EndHandle uint16
	Type                   UUID
}

// ReadByGroupTypeResponse carries a per-element Length byte followed by
// (startHandle, endHandle, uuid) elements.
type ReadByGroupTypeResponse struct {
	Length        uint8
	AttributeData []byte
}

func (*ReadByGroupTypeRequest) Opcode() uint8  { return OpReadByGroupTypeRequest }
func (*ReadByGroupTypeResponse) Opcode() uint8 { return OpReadByGroupTypeResponse }

// ReadRequest/Response (0x0A/0x0B).
type ReadRequest struct{ Handle uint16 }
type ReadResponse struct{ Value []byte }

func (*ReadRequest) Opcode() uint8  { return OpReadRequest }
func (*ReadResponse) Opcode() uint8 { return OpReadResponse }

// ReadBlobRequest/Response (0x0C/0x0D).
type ReadBlobRequest struct {
	Handle uint16
	Offset uint16
}
type ReadBlobResponse struct{ Value []byte }

func (*ReadBlobRequest) Opcode() uint8  { return OpReadBlobRequest }
func (*ReadBlobResponse) Opcode() uint8 { return OpReadBlobResponse }

// WriteRequest/Response (0x12/0x13) and WriteCommand (0x52).
type WriteRequest struct {
	Handle uint16
	Value  []byte
}
type WriteResponse struct{}
type WriteCommand struct {
	Handle uint16
	Value  []byte
}

func (*WriteRequest) Opcode() uint8  { return OpWriteRequest }
func (*WriteResponse) Opcode() uint8 { return OpWriteResponse }
func (*WriteCommand) Opcode() uint8  { return OpWriteCommand }

// PrepareWriteRequest/Response (0x16/0x17).
type PrepareWriteRequest struct {
	Handle uint16
	Offset uint16
	Value  []byte
}
type PrepareWriteResponse struct {
	Handle uint16
	Offset uint16
	Value  []byte
}

func (*PrepareWriteRequest) Opcode() uint8  { return OpPrepareWriteRequest }
func (*PrepareWriteResponse) Opcode() uint8 { return OpPrepareWriteResponse }

// ExecuteWriteRequest/Response (0x18/0x19).
type ExecuteWriteRequest struct{ Flags uint8 }
type ExecuteWriteResponse struct{}

const (
	ExecuteWriteCancel uint8 = 0x00
	ExecuteWriteCommit uint8 = 0x01
)

func (*ExecuteWriteRequest) Opcode() uint8  { return OpExecuteWriteRequest }
func (*ExecuteWriteResponse) Opcode() uint8 { return OpExecuteWriteResponse }

// HandleValueNotification/Indication/Confirmation (0x1B/0x1D/0x1E).
type HandleValueNotification struct {
	Handle uint16
	Value  []byte
}
type HandleValueIndication struct {
	Handle uint16
	Value  []byte
}
type HandleValueConfirmation struct{}

func (*HandleValueNotification) Opcode() uint8 { return OpHandleValueNotification }
func (*HandleValueIndication) Opcode() uint8   { return OpHandleValueIndication }
func (*HandleValueConfirmation) Opcode() uint8 { return OpHandleValueConfirmation }

// --- encode -------------------------------------------------------------------

// Encode serialises a PDU to its wire form.
func Encode(p PDU) ([]byte, error) {
	switch v := p.(type) {
	case *Undefined:
		return v.Raw, nil

	case *ErrorResponse:
		buf := make([]byte, 5)
		buf[0] = OpErrorResponse
		buf[1] = v.RequestOpcode
		binary.LittleEndian.PutUint16(buf[2:4], v.Handle)
		buf[4] = v.ErrorCode
		return buf, nil

	case *ExchangeMTURequest:
		buf := make([]byte, 3)
		buf[0] = OpExchangeMTURequest
		binary.LittleEndian.PutUint16(buf[1:3], v.ClientRxMTU)
		return buf, nil

	case *ExchangeMTUResponse:
		buf := make([]byte, 3)
		buf[0] = OpExchangeMTUResponse
		binary.LittleEndian.PutUint16(buf[1:3], v.ServerRxMTU)
		return buf, nil

	case *FindInformationRequest:
		buf := make([]byte, 5)
		buf[0] = OpFindInformationRequest
		binary.LittleEndian.PutUint16(buf[1:3], v.StartHandle)
		binary.LittleEndian.PutUint16(buf[3:5], v.EndHandle)
		return buf, nil

	case *FindInformationResponse:
		buf := make([]byte, 2+len(v.Data))
		buf[0] = OpFindInformationResponse
		buf[1] = v.Format
		copy(buf[2:], v.Data)
		return buf, nil

	case *ReadByTypeRequest:
		t := v.Type.Bytes()
		buf := make([]byte, 5+len(t))
		buf[0] = OpReadByTypeRequest
		binary.LittleEndian.PutUint16(buf[1:3], v.StartHandle)
		binary.LittleEndian.PutUint16(buf[3:5], v.EndHandle)
		copy(buf[5:], t)
		return buf, nil

	case *ReadByTypeResponse:
		buf := make([]byte, 2+len(v.AttributeData))
		buf[0] = OpReadByTypeResponse
		buf[1] = v.Length
		copy(buf[2:], v.AttributeData)
		return buf, nil

	case *ReadByGroupTypeRequest:
		t := v.Type.Bytes()
		buf := make([]byte, 5+len(t))
		buf[0] = OpReadByGroupTypeRequest
		binary.LittleEndian.PutUint16(buf[1:3], v.StartHandle)
		binary.LittleEndian.PutUint16(buf[3:5], v.EndHandle)
		copy(buf[5:], t)
		return buf, nil

	case *ReadByGroupTypeResponse:
		buf := make([]byte, 2+len(v.AttributeData))
		buf[0] = OpReadByGroupTypeResponse
		buf[1] = v.Length
		copy(buf[2:], v.AttributeData)
		return buf, nil

	case *ReadRequest:
		buf := make([]byte, 3)
		buf[0] = OpReadRequest
		binary.LittleEndian.PutUint16(buf[1:3], v.Handle)
		return buf, nil

	case *ReadResponse:
		buf := make([]byte, 1+len(v.Value))
		buf[0] = OpReadResponse
		copy(buf[1:], v.Value)
		return buf, nil

	case *ReadBlobRequest:
		buf := make([]byte, 5)
		buf[0] = OpReadBlobRequest
		binary.LittleEndian.PutUint16(buf[1:3], v.Handle)
		binary.LittleEndian.PutUint16(buf[3:5], v.Offset)
		return buf, nil

	case *ReadBlobResponse:
		buf := make([]byte, 1+len(v.Value))
		buf[0] = OpReadBlobResponse
		copy(buf[1:], v.Value)
		return buf, nil

	case *WriteRequest:
		buf := make([]byte, 3+len(v.Value))
		buf[0] = OpWriteRequest
		binary.LittleEndian.PutUint16(buf[1:3], v.Handle)
		copy(buf[3:], v.Value)
		return buf, nil

	case *WriteResponse:
		return []byte{OpWriteResponse}, nil

	case *WriteCommand:
		buf := make([]byte, 3+len(v.Value))
		buf[0] = OpWriteCommand
		binary.LittleEndian.PutUint16(buf[1:3], v.Handle)
		copy(buf[3:], v.Value)
		return buf, nil

	case *PrepareWriteRequest:
		buf := make([]byte, 5+len(v.Value))
		buf[0] = OpPrepareWriteRequest
		binary.LittleEndian.PutUint16(buf[1:3], v.Handle)
		binary.LittleEndian.PutUint16(buf[3:5], v.Offset)
		copy(buf[5:], v.Value)
		return buf, nil

	case *PrepareWriteResponse:
		buf := make([]byte, 5+len(v.Value))
		buf[0] = OpPrepareWriteResponse
		binary.LittleEndian.PutUint16(buf[1:3], v.Handle)
		binary.LittleEndian.PutUint16(buf[3:5], v.Offset)
		copy(buf[5:], v.Value)
		return buf, nil

	case *ExecuteWriteRequest:
		return []byte{OpExecuteWriteRequest, v.Flags}, nil

	case *ExecuteWriteResponse:
		return []byte{OpExecuteWriteResponse}, nil

	case *HandleValueNotification:
		buf := make([]byte, 3+len(v.Value))
		buf[0] = OpHandleValueNotification
		binary.LittleEndian.PutUint16(buf[1:3], v.Handle)
		copy(buf[3:], v.Value)
		return buf, nil

	case *HandleValueIndication:
		buf := make([]byte, 3+len(v.Value))
		buf[0] = OpHandleValueIndication
		binary.LittleEndian.PutUint16(buf[1:3], v.Handle)
		copy(buf[3:], v.Value)
		return buf, nil

	case *HandleValueConfirmation:
		return []byte{OpHandleValueConfirmation}, nil

	default:
		return nil, fmt.Errorf("att: unknown PDU type %T", p)
	}
}

// --- decode -------------------------------------------------------------------

// Decode parses one ATT frame. Unknown opcodes decode to *Undefined instead
// of failing, so callers can log-and-drop them.
func Decode(data []byte) (Message, error) {
	now := time.Now()
	if len(data) < 1 {
		return Message{}, &MalformedPDUError{Reason: "empty frame"}
	}
	opcode := data[0]

	malformed := func(reason string) (Message, error) {
		return Message{}, &MalformedPDUError{Opcode: opcode, Reason: reason}
	}

	switch opcode {
	case OpErrorResponse:
		if len(data) < 5 {
			return malformed("ErrorResponse too short")
		}
		return wrap(&ErrorResponse{
			RequestOpcode: data[1],
			Handle:        binary.LittleEndian.Uint16(data[2:4]),
			ErrorCode:     data[4],
		}, now), nil

	case OpExchangeMTURequest:
		if len(data) < 3 {
			return malformed("ExchangeMTURequest too short")
		}
		return wrap(&ExchangeMTURequest{ClientRxMTU: binary.LittleEndian.Uint16(data[1:3])}, now), nil

	case OpExchangeMTUResponse:
		if len(data) < 3 {
			return malformed("ExchangeMTUResponse too short")
		}
		return wrap(&ExchangeMTUResponse{ServerRxMTU: binary.LittleEndian.Uint16(data[1:3])}, now), nil

	case OpFindInformationRequest:
		if len(data) < 5 {
			return malformed("FindInformationRequest too short")
		}
		return wrap(&FindInformationRequest{
			StartHandle: binary.LittleEndian.Uint16(data[1:3]),
			EndHandle:   binary.LittleEndian.Uint16(data[3:5]),
		}, now), nil

	case OpFindInformationResponse:
		if len(data) < 2 {
			return malformed("FindInformationResponse too short")
		}
		return wrap(&FindInformationResponse{Format: data[1], Data: clone(data[2:])}, now), nil

	case OpReadByTypeRequest:
		if len(data) < 7 {
			return malformed("ReadByTypeRequest too short")
		}
		t, err := ParseUUID(data[5:])
		if err != nil {
			return malformed(err.Error())
		}
		return wrap(&ReadByTypeRequest{
			StartHandle: binary.LittleEndian.Uint16(data[1:3]),
			EndHandle:   binary.LittleEndian.Uint16(data[3:5]),
			Type:        t,
		}, now), nil

	case OpReadByTypeResponse:
		if len(data) < 2 {
			return malformed("ReadByTypeResponse too short")
		}
		return wrap(&ReadByTypeResponse{Length: data[1], AttributeData: clone(data[2:])}, now), nil

	case OpReadByGroupTypeRequest:
		if len(data) < 7 {
			return malformed("ReadByGroupTypeRequest too short")
		}
		t, err := ParseUUID(data[5:])
		if err != nil {
			return malformed(err.Error())
		}
		return wrap(&ReadByGroupTypeRequest{
			StartHandle: binary.LittleEndian.Uint16(data[1:3]),
			EndHandle:   binary.LittleEndian.Uint16(data[3:5]),
			Type:        t,
		}, now), nil

	case OpReadByGroupTypeResponse:
		if len(data) < 2 {
			return malformed("ReadByGroupTypeResponse too short")
		}
		return wrap(&ReadByGroupTypeResponse{Length: data[1], AttributeData: clone(data[2:])}, now), nil

	case OpReadRequest:
		if len(data) < 3 {
			return malformed("ReadRequest too short")
		}
		return wrap(&ReadRequest{Handle: binary.LittleEndian.Uint16(data[1:3])}, now), nil

	case OpReadResponse:
		return wrap(&ReadResponse{Value: clone(data[1:])}, now), nil

	case OpReadBlobRequest:
		if len(data) < 5 {
			return malformed("ReadBlobRequest too short")
		}
		return wrap(&ReadBlobRequest{
			Handle: binary.LittleEndian.Uint16(data[1:3]),
			Offset: binary.LittleEndian.Uint16(data[3:5]),
		}, now), nil

	case OpReadBlobResponse:
		return wrap(&ReadBlobResponse{Value: clone(data[1:])}, now), nil

	case OpWriteRequest:
		if len(data) < 3 {
			return malformed("WriteRequest too short")
		}
		return wrap(&WriteRequest{Handle: binary.LittleEndian.Uint16(data[1:3]), Value: clone(data[3:])}, now), nil

	case OpWriteResponse:
		return wrap(&WriteResponse{}, now), nil

	case OpWriteCommand:
		if len(data) < 3 {
			return malformed("WriteCommand too short")
		}
		return wrap(&WriteCommand{Handle: binary.LittleEndian.Uint16(data[1:3]), Value: clone(data[3:])}, now), nil

	case OpPrepareWriteRequest:
		if len(data) < 5 {
			return malformed("PrepareWriteRequest too short")
		}
		return wrap(&PrepareWriteRequest{
			Handle: binary.LittleEndian.Uint16(data[1:3]),
			Offset: binary.LittleEndian.Uint16(data[3:5]),
			Value:  clone(data[5:]),
		}, now), nil

	case OpPrepareWriteResponse:
		if len(data) < 5 {
			return malformed("PrepareWriteResponse too short")
		}
		return wrap(&PrepareWriteResponse{
			Handle: binary.LittleEndian.Uint16(data[1:3]),
			Offset: binary.LittleEndian.Uint16(data[3:5]),
			Value:  clone(data[5:]),
		}, now), nil

	case OpExecuteWriteRequest:
		if len(data) < 2 {
			return malformed("ExecuteWriteRequest too short")
		}
		return wrap(&ExecuteWriteRequest{Flags: data[1]}, now), nil

	case OpExecuteWriteResponse:
		return wrap(&ExecuteWriteResponse{}, now), nil

	case OpHandleValueNotification:
		if len(data) < 3 {
			return malformed("HandleValueNotification too short")
		}
		return wrap(&HandleValueNotification{Handle: binary.LittleEndian.Uint16(data[1:3]), Value: clone(data[3:])}, now), nil

	case OpHandleValueIndication:
		if len(data) < 3 {
			return malformed("HandleValueIndication too short")
		}
		return wrap(&HandleValueIndication{Handle: binary.LittleEndian.Uint16(data[1:3]), Value: clone(data[3:])}, now), nil

	case OpHandleValueConfirmation:
		return wrap(&HandleValueConfirmation{}, now), nil

	default:
		return wrap(&Undefined{RawOpcode: opcode, Raw: clone(data)}, now), nil
	}
}

func wrap(p PDU, t time.Time) Message { return Message{PDU: p, CreatedAt: t} }

func clone(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

// --- element accessors for the three group responses --------------------------
//
// FIND_INFORMATION_RSP, READ_BY_TYPE_RSP and READ_BY_GROUP_TYPE_RSP all carry
// a fixed-size element list after a 2-byte header (opcode + format/length
// byte). The accessors below read and write that list by index instead of
// requiring callers to hand-roll the offset arithmetic.

func findInfoEntrySize(format uint8) (int, int, error) {
	switch format {
	case 0x01:
		return 4, 2, nil // handle(2) + uuid(2)
	case 0x02:
		return 18, 16, nil // handle(2) + uuid(16)
	default:
		return 0, 0, fmt.Errorf("att: invalid Find Information format 0x%02X", format)
	}
}

// NumElements returns how many (handle, uuid) pairs are present.
func (r *FindInformationResponse) NumElements() (int, error) {
	entrySize, _, err := findInfoEntrySize(r.Format)
	if err != nil {
		return 0, err
	}
	if entrySize == 0 || len(r.Data)%entrySize != 0 {
		return 0, fmt.Errorf("att: Find Information data length %d not a multiple of %d", len(r.Data), entrySize)
	}
	return len(r.Data) / entrySize, nil
}

// ElementAt returns the handle/UUID pair at index i.
func (r *FindInformationResponse) ElementAt(i int) (handle uint16, uuid UUID, err error) {
	entrySize, uuidWidth, err := findInfoEntrySize(r.Format)
	if err != nil {
		return 0, UUID{}, err
	}
	off := i * entrySize
	if off+entrySize > len(r.Data) {
		return 0, UUID{}, fmt.Errorf("att: Find Information element %d out of range", i)
	}
	handle = binary.LittleEndian.Uint16(r.Data[off : off+2])
	uuid, err = ParseUUID(r.Data[off+2 : off+2+uuidWidth])
	return handle, uuid, err
}

// NewFindInformationResponseBuffer allocates a response with room for
// maxElements entries of the given UUID width (2 or 16); fill it with
// SetElement and call Resize once you know how many elements actually fit.
func NewFindInformationResponseBuffer(uuidWidth, maxElements int) (*FindInformationResponse, error) {
	var format uint8
	switch uuidWidth {
	case 2:
		format = 0x01
	case 16:
		format = 0x02
	default:
		return nil, fmt.Errorf("att: invalid UUID width %d", uuidWidth)
	}
	entrySize := 2 + uuidWidth
	return &FindInformationResponse{Format: format, Data: make([]byte, maxElements*entrySize)}, nil
}

// SetElement writes the handle/UUID pair at index i into the pre-sized
// buffer created by NewFindInformationResponseBuffer.
func (r *FindInformationResponse) SetElement(i int, handle uint16, uuid UUID) error {
	entrySize, uuidWidth, err := findInfoEntrySize(r.Format)
	if err != nil {
		return err
	}
	if uuid.Width() != uuidWidth {
		return fmt.Errorf("att: UUID width %d does not match format width %d", uuid.Width(), uuidWidth)
	}
	off := i * entrySize
	if off+entrySize > len(r.Data) {
		return fmt.Errorf("att: element %d out of range for preallocated buffer", i)
	}
	binary.LittleEndian.PutUint16(r.Data[off:off+2], handle)
	copy(r.Data[off+2:off+entrySize], uuid.Bytes())
	return nil
}

// Resize truncates the element buffer to exactly n elements (called after
// the caller has determined how many elements fit inside the MTU).
func (r *FindInformationResponse) Resize(n int) error {
	entrySize, _, err := findInfoEntrySize(r.Format)
	if err != nil {
		return err
	}
	if n*entrySize > len(r.Data) {
		return fmt.Errorf("att: cannot resize to %d elements, buffer too small", n)
	}
	r.Data = r.Data[:n*entrySize]
	return nil
}

// --- ReadByTypeResponse element accessors: (declHandle, properties, valueHandle, uuid)

// NewReadByTypeResponseBuffer allocates a response with room for maxElements
// characteristic-declaration entries of the given value-UUID width.
func NewReadByTypeResponseBuffer(uuidWidth, maxElements int) *ReadByTypeResponse {
	length := 5 + uuidWidth
	return &ReadByTypeResponse{Length: uint8(length), AttributeData: make([]byte, maxElements*length)}
}

func (r *ReadByTypeResponse) elementSize() (int, int) {
	return int(r.Length), int(r.Length) - 5
}

// NumElements returns how many characteristic-declaration entries are present.
func (r *ReadByTypeResponse) NumElements() (int, error) {
	entrySize, _ := r.elementSize()
	if entrySize <= 0 || len(r.AttributeData)%entrySize != 0 {
		return 0, fmt.Errorf("att: ReadByType data length %d not a multiple of %d", len(r.AttributeData), entrySize)
	}
	return len(r.AttributeData) / entrySize, nil
}

// ElementAt returns the declaration handle, properties, value handle and
// value-type UUID of the i-th characteristic declaration.
func (r *ReadByTypeResponse) ElementAt(i int) (declHandle uint16, properties uint8, valueHandle uint16, uuid UUID, err error) {
	entrySize, uuidWidth := r.elementSize()
	if uuidWidth <= 0 {
		return 0, 0, 0, UUID{}, fmt.Errorf("att: invalid ReadByType element length %d", r.Length)
	}
	off := i * entrySize
	if off+entrySize > len(r.AttributeData) {
		return 0, 0, 0, UUID{}, fmt.Errorf("att: ReadByType element %d out of range", i)
	}
	e := r.AttributeData[off : off+entrySize]
	declHandle = binary.LittleEndian.Uint16(e[0:2])
	properties = e[2]
	valueHandle = binary.LittleEndian.Uint16(e[3:5])
	uuid, err = ParseUUID(e[5:])
	return declHandle, properties, valueHandle, uuid, err
}

// SetElement writes one characteristic-declaration entry at index i.
func (r *ReadByTypeResponse) SetElement(i int, declHandle uint16, properties uint8, valueHandle uint16, uuid UUID) error {
	entrySize, uuidWidth := r.elementSize()
	if uuid.Width() != uuidWidth {
		return fmt.Errorf("att: UUID width %d does not match element width %d", uuid.Width(), uuidWidth)
	}
	off := i * entrySize
	if off+entrySize > len(r.AttributeData) {
		return fmt.Errorf("att: element %d out of range for preallocated buffer", i)
	}
	e := r.AttributeData[off : off+entrySize]
	binary.LittleEndian.PutUint16(e[0:2], declHandle)
	e[2] = properties
	binary.LittleEndian.PutUint16(e[3:5], valueHandle)
	copy(e[5:], uuid.Bytes())
	return nil
}

// Resize truncates to n elements.
func (r *ReadByTypeResponse) Resize(n int) error {
	entrySize, _ := r.elementSize()
	if n*entrySize > len(r.AttributeData) {
		return fmt.Errorf("att: cannot resize to %d elements, buffer too small", n)
	}
	r.AttributeData = r.AttributeData[:n*entrySize]
	return nil
}

// --- ReadByGroupTypeResponse element accessors: (startHandle, endHandle, uuid)

// NewReadByGroupTypeResponseBuffer allocates a response with room for
// maxElements service-group entries of the given UUID width.
func NewReadByGroupTypeResponseBuffer(uuidWidth, maxElements int) *ReadByGroupTypeResponse {
	length := 4 + uuidWidth
	return &ReadByGroupTypeResponse{Length: uint8(length), AttributeData: make([]byte, maxElements*length)}
}

func (r *ReadByGroupTypeResponse) elementSize() (int, int) {
	return int(r.Length), int(r.Length) - 4
}

// NumElements returns how many service-group entries are present.
func (r *ReadByGroupTypeResponse) NumElements() (int, error) {
	entrySize, _ := r.elementSize()
	if entrySize <= 0 || len(r.AttributeData)%entrySize != 0 {
		return 0, fmt.Errorf("att: ReadByGroupType data length %d not a multiple of %d", len(r.AttributeData), entrySize)
	}
	return len(r.AttributeData) / entrySize, nil
}

// ElementAt returns the start handle, end handle and group-type UUID of the
// i-th service-group entry.
func (r *ReadByGroupTypeResponse) ElementAt(i int) (startHandle, endHandle uint16, uuid UUID, err error) {
	entrySize, uuidWidth := r.elementSize()
	if uuidWidth <= 0 {
		return 0, 0, UUID{}, fmt.Errorf("att: invalid ReadByGroupType element length %d", r.Length)
	}
	off := i * entrySize
	if off+entrySize > len(r.AttributeData) {
		return 0, 0, UUID{}, fmt.Errorf("att: ReadByGroupType element %d out of range", i)
	}
	e := r.AttributeData[off : off+entrySize]
	startHandle = binary.LittleEndian.Uint16(e[0:2])
	endHandle = binary.LittleEndian.Uint16(e[2:4])
	uuid, err = ParseUUID(e[4:])
	return startHandle, endHandle, uuid, err
}

// SetElement writes one service-group entry at index i.
func (r *ReadByGroupTypeResponse) SetElement(i int, startHandle, endHandle uint16, uuid UUID) error {
	entrySize, uuidWidth := r.elementSize()
	if uuid.Width() != uuidWidth {
		return fmt.Errorf("att: UUID width %d does not match element width %d", uuid.Width(), uuidWidth)
	}
	off := i * entrySize
	if off+entrySize > len(r.AttributeData) {
		return fmt.Errorf("att: element %d out of range for preallocated buffer", i)
	}
	e := r.AttributeData[off : off+entrySize]
	binary.LittleEndian.PutUint16(e[0:2], startHandle)
	binary.LittleEndian.PutUint16(e[2:4], endHandle)
	copy(e[4:], uuid.Bytes())
	return nil
}

// Resize truncates to n elements.
func (r *ReadByGroupTypeResponse) Resize(n int) error {
	entrySize, _ := r.elementSize()
	if n*entrySize > len(r.AttributeData) {
		return fmt.Errorf("att: cannot resize to %d elements, buffer too small", n)
	}
	r.AttributeData = r.AttributeData[:n*entrySize]
	return nil
}
