package session

import (
	"github.com/user/gattwire/att"
	"github.com/user/gattwire/gatt"
	logpkg "github.com/user/gattwire/log"
)

// ReadCharacteristicValue reads a value attribute, transparently chaining
// READ_BLOB_REQ calls while the response comes back exactly MTU-1 bytes
// long (the signal that more of the value remains).
func (s *Session) ReadCharacteristicValue(handle uint16) ([]byte, error) {
	return s.readLongValue(handle)
}

// ReadDescriptorValue reads a descriptor attribute the same way.
func (s *Session) ReadDescriptorValue(handle uint16) ([]byte, error) {
	return s.readLongValue(handle)
}

func (s *Session) readLongValue(handle uint16) ([]byte, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	reply, err := s.do(att.OpReadRequest, handle, s.cfg.ReadReplyTimeout, func() error {
		return s.sendPDU(&att.ReadRequest{Handle: handle})
	})
	if err != nil {
		return nil, err
	}
	resp, ok := reply.(*att.ReadResponse)
	if !ok {
		return nil, s.errorFromReply(reply, att.OpReadRequest, handle)
	}
	value := append([]byte{}, resp.Value...)

	chunkSize := s.UsedMTU() - 1
	for len(resp.Value) == chunkSize {
		offset := uint16(len(value))
		reply, err := s.do(att.OpReadBlobRequest, handle, s.cfg.ReadReplyTimeout, func() error {
			return s.sendPDU(&att.ReadBlobRequest{Handle: handle, Offset: offset})
		})
		if err != nil {
			return nil, err
		}
		blob, ok := reply.(*att.ReadBlobResponse)
		if !ok {
			return nil, s.errorFromReply(reply, att.OpReadBlobRequest, handle)
		}
		if len(blob.Value) == 0 {
			break
		}
		value = append(value, blob.Value...)
		resp = &att.ReadResponse{Value: blob.Value}
	}
	return value, nil
}

// WriteCharacteristicValue writes a value attribute. When withResponse is
// false a WRITE_CMD is used and the call returns as soon as the command is
// on the wire. Values longer than fit in a single PDU at the negotiated MTU
// are rejected: queued long writes are a server-side concern this client
// does not yet drive (see DESIGN.md).
func (s *Session) WriteCharacteristicValue(handle uint16, value []byte, withResponse bool) error {
	return s.writeValue(handle, value, withResponse)
}

// WriteDescriptorValue writes a descriptor attribute the same way.
func (s *Session) WriteDescriptorValue(handle uint16, value []byte, withResponse bool) error {
	return s.writeValue(handle, value, withResponse)
}

func (s *Session) writeValue(handle uint16, value []byte, withResponse bool) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	if len(value) > s.UsedMTU()-3 {
		return wrap(ErrInvalidArgument, "value of %d bytes exceeds single-PDU capacity at MTU %d", len(value), s.UsedMTU())
	}

	if !withResponse {
		return s.sendPDU(&att.WriteCommand{Handle: handle, Value: value})
	}

	reply, err := s.do(att.OpWriteRequest, handle, s.cfg.WriteReplyTimeout, func() error {
		return s.sendPDU(&att.WriteRequest{Handle: handle, Value: value})
	})
	if err != nil {
		return err
	}
	if _, ok := reply.(*att.WriteResponse); !ok {
		return s.errorFromReply(reply, att.OpWriteRequest, handle)
	}
	return nil
}

// ConfigureNotificationIndication writes the CCCD for a characteristic
// whose descriptors have already been discovered, enabling or disabling
// notifications and/or indications.
func (s *Session) ConfigureNotificationIndication(charValueHandle uint16, notify, indicate bool) error {
	if s.discovery == nil {
		return wrap(ErrInvalidArgument, "ConfigureNotificationIndication requires a client-role session")
	}
	desc, err := s.discovery.DescriptorByUUID(charValueHandle, gatt.UUIDClientCharacteristicConfig)
	if err != nil {
		return err
	}
	value := gatt.EncodeCCCDValue(gatt.CCCDConfig{NotifyEnabled: notify, IndicateEnabled: indicate})
	err = s.WriteDescriptorValue(desc.Handle, value, true)
	if err != nil && !notify && !indicate {
		logpkg.Warn("session", "CCCD disable write to handle 0x%04X failed, treating as already disabled: %v", desc.Handle, err)
		return nil
	}
	return err
}

// SendNotification pushes a HANDLE_VALUE_NTF for a subscribed client. It is
// only valid on a server-role session, and only once the client has
// enabled notifications on valueHandle via its CCCD.
func (s *Session) SendNotification(valueHandle uint16, value []byte) error {
	if s.subs == nil {
		return wrap(ErrInvalidArgument, "SendNotification requires a server-role session")
	}
	if _, err := s.responder.db.AttributeByHandle(valueHandle); err != nil {
		return wrap(ErrInvalidArgument, "no attribute at handle 0x%04X", valueHandle)
	}
	cfg, ok := s.subs.Get(valueHandle)
	if !ok || !cfg.NotifyEnabled {
		return wrap(ErrInvalidArgument, "no client subscribed to notifications on handle 0x%04X", valueHandle)
	}
	return s.sendPDU(&att.HandleValueNotification{Handle: valueHandle, Value: value})
}

// SendIndication pushes a HANDLE_VALUE_IND and blocks until the client
// confirms it or the write reply timeout elapses. Only one indication may
// be outstanding at a time, enforced by the shared transaction pipeline.
func (s *Session) SendIndication(valueHandle uint16, value []byte) error {
	if s.subs == nil {
		return wrap(ErrInvalidArgument, "SendIndication requires a server-role session")
	}
	if _, err := s.responder.db.AttributeByHandle(valueHandle); err != nil {
		return wrap(ErrInvalidArgument, "no attribute at handle 0x%04X", valueHandle)
	}
	cfg, ok := s.subs.Get(valueHandle)
	if !ok || !cfg.IndicateEnabled {
		return wrap(ErrInvalidArgument, "no client subscribed to indications on handle 0x%04X", valueHandle)
	}
	_, err := s.do(att.OpHandleValueIndication, valueHandle, s.cfg.WriteReplyTimeout, func() error {
		return s.sendPDU(&att.HandleValueIndication{Handle: valueHandle, Value: value})
	})
	return err
}
