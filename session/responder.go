package session

import (
	"github.com/user/gattwire/att"
	"github.com/user/gattwire/gatt"
)

// responder answers incoming ATT requests against a server-side attribute
// database. It holds no transport or transaction state: Handle maps
// (request, mtu) to a response PDU or an *att.Error, updating the database,
// the prepared-write queue, and CCCD subscriptions as the request demands;
// the dispatch loop sends the response back or wraps the error into an
// ERROR_RSP.
type responder struct {
	db          *gatt.Database
	subs        *gatt.SubscriptionTracker
	prepared    *preparedWriteQueue
	onCCCChange func(valueHandle uint16, cfg gatt.CCCDConfig)

	// onReadVeto and onWriteVeto, when set, let the application reject a
	// read or write the permission bits alone would have allowed (an
	// authorization step layered on top of the static ACL). They run after
	// the handle/permission checks and before the value is touched, and are
	// never consulted for a CCCD write, which always goes through
	// applyCCCDWrite instead.
	onReadVeto  func(handle uint16) *att.Error
	onWriteVeto func(handle uint16, offset uint16, value []byte) *att.Error
}

func newResponder(db *gatt.Database, subs *gatt.SubscriptionTracker) *responder {
	r := &responder{db: db, subs: subs, prepared: newPreparedWriteQueue()}
	subs.OnChange = func(h uint16, cfg gatt.CCCDConfig) {
		if r.onCCCChange != nil {
			r.onCCCChange(h, cfg)
		}
	}
	return r
}

// Handle dispatches one request PDU and returns either the reply PDU to
// send, or an *att.Error describing why the request was rejected.
func (r *responder) Handle(req att.PDU, mtu int) (att.PDU, error) {
	switch v := req.(type) {
	case *att.ReadByGroupTypeRequest:
		return r.readByGroupType(v, mtu)
	case *att.ReadByTypeRequest:
		return r.readByType(v, mtu)
	case *att.FindInformationRequest:
		return r.findInformation(v, mtu)
	case *att.ReadRequest:
		return r.read(v, mtu)
	case *att.ReadBlobRequest:
		return r.readBlob(v, mtu)
	case *att.WriteRequest:
		return r.write(v.Handle, v.Value, att.OpWriteRequest)
	case *att.WriteCommand:
		// Commands have no reply; errors are discarded by the caller.
		_, err := r.write(v.Handle, v.Value, att.OpWriteCommand)
		return nil, err
	case *att.PrepareWriteRequest:
		return r.prepareWrite(v)
	case *att.ExecuteWriteRequest:
		return r.executeWrite(v)
	default:
		return nil, att.NewError(att.ErrRequestNotSupported, req.Opcode(), 0)
	}
}

func (r *responder) readByGroupType(req *att.ReadByGroupTypeRequest, mtu int) (att.PDU, error) {
	if !req.Type.Equal(gatt.UUIDPrimaryService) && !req.Type.Equal(gatt.UUIDSecondaryService) {
		return nil, att.NewError(att.ErrUnsupportedGroupType, req.Opcode(), req.StartHandle)
	}
	resp, ok := gatt.BuildReadByGroupTypeResponse(r.db, req.StartHandle, req.EndHandle, mtu)
	if !ok {
		return nil, att.NewError(att.ErrAttributeNotFound, req.Opcode(), req.StartHandle)
	}
	return resp, nil
}

// readByType only recognises CHARACTERISTIC and INCLUDE_DECLARATION as
// group-member types; any other type is treated as matching nothing rather
// than as a general attribute-value lookup.
func (r *responder) readByType(req *att.ReadByTypeRequest, mtu int) (att.PDU, error) {
	if !req.Type.Equal(gatt.UUIDCharacteristic) && !req.Type.Equal(gatt.UUIDInclude) {
		return nil, att.NewError(att.ErrAttributeNotFound, req.Opcode(), req.StartHandle)
	}
	resp, ok := gatt.BuildReadByTypeResponse(r.db, req.StartHandle, req.EndHandle, req.Type, mtu)
	if !ok {
		return nil, att.NewError(att.ErrAttributeNotFound, req.Opcode(), req.StartHandle)
	}
	return resp, nil
}

func (r *responder) findInformation(req *att.FindInformationRequest, mtu int) (att.PDU, error) {
	var handles []uint16
	for h := req.StartHandle; h <= req.EndHandle && h != 0; h++ {
		if _, err := r.db.AttributeByHandle(h); err == nil {
			handles = append(handles, h)
		}
		if h == 0xFFFF {
			break
		}
	}
	if len(handles) == 0 {
		return nil, att.NewError(att.ErrAttributeNotFound, req.Opcode(), req.StartHandle)
	}

	first, _ := r.db.AttributeByHandle(handles[0])
	width := first.Type.Width()
	fit := 0
	for _, h := range handles {
		a, _ := r.db.AttributeByHandle(h)
		if a.Type.Width() != width {
			break
		}
		fit++
	}
	entrySize := 2 + width
	usable := mtu - 2
	if usable > 255 {
		usable = 255
	}
	if usable < 0 {
		usable = 0
	}
	if maxFit := usable / entrySize; fit > maxFit {
		fit = maxFit
	}

	resp, err := att.NewFindInformationResponseBuffer(width, fit)
	if err != nil {
		return nil, att.NewError(att.ErrUnlikelyError, req.Opcode(), req.StartHandle)
	}
	for i := 0; i < fit; i++ {
		a, _ := r.db.AttributeByHandle(handles[i])
		_ = resp.SetElement(i, a.Handle, a.Type)
	}
	return resp, nil
}

func (r *responder) read(req *att.ReadRequest, mtu int) (att.PDU, error) {
	a, err := r.db.AttributeByHandle(req.Handle)
	if err != nil {
		return nil, att.NewError(att.ErrInvalidHandle, req.Opcode(), req.Handle)
	}
	if a.Permissions&gatt.PermReadable == 0 {
		return nil, att.NewError(att.ErrReadNotPermitted, req.Opcode(), req.Handle)
	}
	if r.onReadVeto != nil {
		if verr := r.onReadVeto(req.Handle); verr != nil {
			return nil, verr
		}
	}
	value := a.Value
	max := mtu - 1
	if len(value) > max {
		value = value[:max]
	}
	return &att.ReadResponse{Value: value}, nil
}

func (r *responder) readBlob(req *att.ReadBlobRequest, mtu int) (att.PDU, error) {
	a, err := r.db.AttributeByHandle(req.Handle)
	if err != nil {
		return nil, att.NewError(att.ErrInvalidHandle, req.Opcode(), req.Handle)
	}
	if a.Permissions&gatt.PermReadable == 0 {
		return nil, att.NewError(att.ErrReadNotPermitted, req.Opcode(), req.Handle)
	}
	if req.Offset == 0 && len(a.Value) <= mtu-1 {
		return nil, att.NewError(att.ErrAttributeNotLong, req.Opcode(), req.Handle)
	}
	if r.onReadVeto != nil {
		if verr := r.onReadVeto(req.Handle); verr != nil {
			return nil, verr
		}
	}
	if int(req.Offset) > len(a.Value) {
		return nil, att.NewError(att.ErrInvalidOffset, req.Opcode(), req.Handle)
	}
	if int(req.Offset) == len(a.Value) {
		return &att.ReadBlobResponse{Value: nil}, nil
	}
	value := a.Value[req.Offset:]
	max := mtu - 1
	if len(value) > max {
		value = value[:max]
	}
	return &att.ReadBlobResponse{Value: value}, nil
}

func (r *responder) write(handle uint16, value []byte, reqOpcode uint8) (att.PDU, error) {
	if verr := r.applyWrite(reqOpcode, handle, 0, value); verr != nil {
		return nil, verr
	}
	if reqOpcode == att.OpWriteCommand {
		return nil, nil
	}
	return &att.WriteResponse{}, nil
}

// applyWrite implements the write path shared by WRITE_REQ, WRITE_CMD, and
// an EXECUTE_WRITE_REQ replaying the staged prepare-write queue: a
// Characteristic User Description descriptor unconditionally rejects
// writes regardless of its Permissions bits, the CCCD never touches the raw
// attribute bytes, and everything else gets an offset/capacity check against
// the attribute's FixedLength/MaxLength policy before splicing value in at
// offset.
func (r *responder) applyWrite(opcode uint8, handle uint16, offset uint16, value []byte) *att.Error {
	a, err := r.db.AttributeByHandle(handle)
	if err != nil {
		return att.NewError(att.ErrInvalidHandle, opcode, handle)
	}
	if a.Type.Equal(gatt.UUIDCharUserDescription) {
		return att.NewError(att.ErrWriteNotPermitted, opcode, handle)
	}
	if a.Permissions&gatt.PermWritable == 0 {
		return att.NewError(att.ErrWriteNotPermitted, opcode, handle)
	}

	if a.Type.Equal(gatt.UUIDClientCharacteristicConfig) {
		return r.applyCCCDWrite(opcode, a, offset, value)
	}

	if r.onWriteVeto != nil {
		if verr := r.onWriteVeto(handle, offset, value); verr != nil {
			return verr
		}
	}

	if int(offset) > len(a.Value) {
		return att.NewError(att.ErrInvalidOffset, opcode, handle)
	}
	if a.FixedLength {
		if offset != 0 || len(value) != len(a.Value) {
			return att.NewError(att.ErrInvalidAttributeValueLength, opcode, handle)
		}
	} else if a.MaxLength > 0 && int(offset)+len(value) > a.MaxLength {
		return att.NewError(att.ErrInvalidAttributeValueLength, opcode, handle)
	}

	newValue := append(append([]byte{}, a.Value[:offset]...), value...)
	if err := r.db.SetAttributeValue(handle, newValue); err != nil {
		return att.NewError(att.ErrInvalidHandle, opcode, handle)
	}
	return nil
}

// applyCCCDWrite handles a write landing on a Client Characteristic
// Configuration descriptor: a zero-length value is a documented no-op
// (nothing persisted, no callback), and a write that re-states the already
// stored config is applied but does not re-fire OnChange. The decoded bits
// are masked against the owning characteristic's declared Notify/Indicate
// properties before being handed to the tracker, so a client can never
// subscribe to a property the characteristic never advertised. It bypasses
// the generic write-veto callback, since subscription state is
// session-local bookkeeping rather than application data.
func (r *responder) applyCCCDWrite(opcode uint8, cccd *gatt.Attribute, offset uint16, value []byte) *att.Error {
	if offset != 0 {
		return att.NewError(att.ErrInvalidOffset, opcode, cccd.Handle)
	}
	if len(value) == 0 {
		return nil
	}
	valueHandle := cccd.OwnerValueHandle
	if valueHandle == 0 {
		valueHandle = cccd.Handle
	}
	cfg, err := gatt.DecodeCCCDValue(value)
	if err != nil {
		return att.NewError(att.ErrInvalidAttributeValueLength, opcode, cccd.Handle)
	}
	if ch, ok := r.db.CharacteristicByValueHandle(valueHandle); ok {
		cfg.NotifyEnabled = cfg.NotifyEnabled && ch.Properties&gatt.PropNotify != 0
		cfg.IndicateEnabled = cfg.IndicateEnabled && ch.Properties&gatt.PropIndicate != 0
	}
	r.subs.Apply(valueHandle, cfg)
	return nil
}

func (r *responder) prepareWrite(req *att.PrepareWriteRequest) (att.PDU, error) {
	a, err := r.db.AttributeByHandle(req.Handle)
	if err != nil {
		return nil, att.NewError(att.ErrInvalidHandle, req.Opcode(), req.Handle)
	}
	if a.Permissions&gatt.PermWritable == 0 {
		return nil, att.NewError(att.ErrWriteNotPermitted, req.Opcode(), req.Handle)
	}
	if err := r.prepared.Stage(req.Handle, req.Offset, req.Value); err != nil {
		return nil, err
	}
	return &att.PrepareWriteResponse{Handle: req.Handle, Offset: req.Offset, Value: req.Value}, nil
}

func (r *responder) executeWrite(req *att.ExecuteWriteRequest) (att.PDU, error) {
	if req.Flags == att.ExecuteWriteCancel {
		r.prepared.Reset()
		return &att.ExecuteWriteResponse{}, nil
	}
	if err := r.prepared.Commit(func(handle, offset uint16, value []byte) *att.Error {
		return r.applyWrite(att.OpExecuteWriteRequest, handle, offset, value)
	}); err != nil {
		return nil, err
	}
	return &att.ExecuteWriteResponse{}, nil
}
