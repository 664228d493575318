package session

import (
	"github.com/user/gattwire/att"
	"github.com/user/gattwire/gatt"
)

// DiscoverPrimaryServices walks the remote attribute table with repeated
// READ_BY_GROUP_TYPE_REQ calls until ATTRIBUTE_NOT_FOUND signals the end of
// the handle space, caching every service it finds.
func (s *Session) DiscoverPrimaryServices() ([]gatt.DiscoveredService, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}
	if s.discovery == nil {
		return nil, wrap(ErrInvalidArgument, "DiscoverPrimaryServices requires a client-role session")
	}

	var all []gatt.DiscoveredService
	start := uint16(1)
	for start != 0 {
		reply, err := s.do(att.OpReadByGroupTypeRequest, start, s.cfg.ReadReplyTimeout, func() error {
			return s.sendPDU(&att.ReadByGroupTypeRequest{StartHandle: start, EndHandle: 0xFFFF, Type: gatt.UUIDPrimaryService})
		})
		if err != nil {
			return nil, err
		}
		resp, ok := reply.(*att.ReadByGroupTypeResponse)
		if !ok {
			if ae, ok := reply.(*att.ErrorResponse); ok && ae.ErrorCode == att.ErrAttributeNotFound {
				break
			}
			return nil, s.errorFromReply(reply, att.OpReadByGroupTypeRequest, start)
		}
		found, err := gatt.ParseReadByGroupTypeResponse(resp)
		if err != nil {
			return nil, wrap(ErrMalformedPDU, "%v", err)
		}
		for _, svc := range found {
			s.discovery.AddService(svc)
			all = append(all, svc)
		}
		last := found[len(found)-1].EndHandle
		if last == 0xFFFF {
			break
		}
		start = last + 1
	}
	return all, nil
}

// Services returns the services discovered so far.
func (s *Session) Services() []gatt.DiscoveredService {
	if s.discovery == nil {
		return nil
	}
	return s.discovery.Services
}

// DiscoverCharacteristics walks [svc.StartHandle, svc.EndHandle] with
// READ_BY_TYPE_REQ for the characteristic declaration UUID, caching every
// characteristic it finds under svc.
func (s *Session) DiscoverCharacteristics(svc gatt.DiscoveredService) ([]gatt.DiscoveredCharacteristic, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}
	var all []gatt.DiscoveredCharacteristic
	start := svc.StartHandle
	for start <= svc.EndHandle {
		reply, err := s.do(att.OpReadByTypeRequest, start, s.cfg.ReadReplyTimeout, func() error {
			return s.sendPDU(&att.ReadByTypeRequest{StartHandle: start, EndHandle: svc.EndHandle, Type: gatt.UUIDCharacteristic})
		})
		if err != nil {
			return nil, err
		}
		resp, ok := reply.(*att.ReadByTypeResponse)
		if !ok {
			if ae, ok := reply.(*att.ErrorResponse); ok && ae.ErrorCode == att.ErrAttributeNotFound {
				break
			}
			return nil, s.errorFromReply(reply, att.OpReadByTypeRequest, start)
		}
		found, err := gatt.ParseReadByTypeResponse(resp, svc.StartHandle)
		if err != nil {
			return nil, wrap(ErrMalformedPDU, "%v", err)
		}
		for _, c := range found {
			s.discovery.AddCharacteristic(svc.StartHandle, c)
			all = append(all, c)
		}
		last := found[len(found)-1].DeclHandle
		if last >= svc.EndHandle {
			break
		}
		start = last + 1
	}
	return all, nil
}

// DiscoverDescriptors walks (charValueHandle, boundHandle] with
// FIND_INFORMATION_REQ, reading each descriptor's value as it is found and
// caching it under charValueHandle. boundHandle is the next characteristic's
// declaration handle minus one, or the owning service's end handle for the
// last characteristic. A read failure on any descriptor aborts the scan and
// returns the error, leaving descriptors found before it cached.
func (s *Session) DiscoverDescriptors(charValueHandle, boundHandle uint16) ([]gatt.DiscoveredDescriptor, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}
	var all []gatt.DiscoveredDescriptor
	start := charValueHandle + 1
	for start <= boundHandle {
		reply, err := s.do(att.OpFindInformationRequest, start, s.cfg.ReadReplyTimeout, func() error {
			return s.sendPDU(&att.FindInformationRequest{StartHandle: start, EndHandle: boundHandle})
		})
		if err != nil {
			return nil, err
		}
		resp, ok := reply.(*att.FindInformationResponse)
		if !ok {
			if ae, ok := reply.(*att.ErrorResponse); ok && ae.ErrorCode == att.ErrAttributeNotFound {
				break
			}
			return nil, s.errorFromReply(reply, att.OpFindInformationRequest, start)
		}
		found, err := gatt.ParseFindInformationResponse(resp)
		if err != nil {
			return nil, wrap(ErrMalformedPDU, "%v", err)
		}
		for _, d := range found {
			if _, err := s.ReadDescriptorValue(d.Handle); err != nil {
				return nil, err
			}
			s.discovery.AddDescriptor(charValueHandle, d)
			all = append(all, d)
		}
		last := found[len(found)-1].Handle
		if last >= boundHandle {
			break
		}
		start = last + 1
	}
	return all, nil
}

// GenericAccess reads the device name and appearance from the standard
// Generic Access service (0x1800), discovering it first if necessary.
func (s *Session) GenericAccess() (name string, appearance uint16, err error) {
	nameVal, err := s.readWellKnownCharacteristic(att.UUID16(0x1800), att.UUID16(0x2A00))
	if err != nil {
		return "", 0, err
	}
	appVal, err := s.readWellKnownCharacteristic(att.UUID16(0x1800), att.UUID16(0x2A01))
	if err != nil {
		return string(nameVal), 0, err
	}
	var app uint16
	if len(appVal) >= 2 {
		app = uint16(appVal[0]) | uint16(appVal[1])<<8
	}
	return string(nameVal), app, nil
}

// DeviceInformation reads every characteristic under the standard Device
// Information service (0x180A) it can find, keyed by characteristic UUID
// string.
func (s *Session) DeviceInformation() (map[string][]byte, error) {
	services, err := s.ensureServicesDiscovered()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	for _, svc := range services {
		if !svc.UUID.Equal(att.UUID16(0x180A)) {
			continue
		}
		chars, err := s.DiscoverCharacteristics(svc)
		if err != nil {
			return nil, err
		}
		for _, c := range chars {
			val, err := s.ReadCharacteristicValue(c.ValueHandle)
			if err != nil {
				continue
			}
			out[c.UUID.String()] = val
		}
	}
	return out, nil
}

func (s *Session) ensureServicesDiscovered() ([]gatt.DiscoveredService, error) {
	if s.discovery != nil && len(s.discovery.Services) > 0 {
		return s.discovery.Services, nil
	}
	return s.DiscoverPrimaryServices()
}

func (s *Session) readWellKnownCharacteristic(serviceUUID, charUUID att.UUID) ([]byte, error) {
	services, err := s.ensureServicesDiscovered()
	if err != nil {
		return nil, err
	}
	for _, svc := range services {
		if !svc.UUID.Equal(serviceUUID) {
			continue
		}
		chars, err := s.DiscoverCharacteristics(svc)
		if err != nil {
			return nil, err
		}
		for _, c := range chars {
			if c.UUID.Equal(charUUID) {
				return s.ReadCharacteristicValue(c.ValueHandle)
			}
		}
	}
	return nil, wrap(ErrInvalidArgument, "characteristic %s not found under service %s", charUUID, serviceUUID)
}
