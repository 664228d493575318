package gatt

import (
	"fmt"

	"github.com/user/gattwire/att"
)

// DiscoveredService is a service entry learned from a Read By Group Type
// Response during client-side primary service discovery.
type DiscoveredService struct {
	UUID        att.UUID
	StartHandle uint16
	EndHandle   uint16
}

// DiscoveredCharacteristic is a characteristic entry learned from a Read By
// Type Response.
type DiscoveredCharacteristic struct {
	UUID               att.UUID
	Properties         uint8
	DeclHandle         uint16
	ValueHandle        uint16
	ServiceStartHandle uint16
}

// DiscoveredDescriptor is a descriptor entry learned from a Find
// Information Response.
type DiscoveredDescriptor struct {
	UUID   att.UUID
	Handle uint16
}

// DiscoveryCache accumulates a client's view of a remote attribute table as
// discovery responses arrive, and answers the lookups a session needs to
// translate a UUID-addressed call into a handle.
type DiscoveryCache struct {
	Services        []DiscoveredService
	Characteristics map[uint16][]DiscoveredCharacteristic // service start handle -> characteristics
	Descriptors     map[uint16][]DiscoveredDescriptor     // characteristic value handle -> descriptors
}

// NewDiscoveryCache returns an empty cache.
func NewDiscoveryCache() *DiscoveryCache {
	return &DiscoveryCache{
		Characteristics: make(map[uint16][]DiscoveredCharacteristic),
		Descriptors:     make(map[uint16][]DiscoveredDescriptor),
	}
}

func (dc *DiscoveryCache) AddService(s DiscoveredService) {
	dc.Services = append(dc.Services, s)
}

func (dc *DiscoveryCache) AddCharacteristic(serviceStartHandle uint16, c DiscoveredCharacteristic) {
	dc.Characteristics[serviceStartHandle] = append(dc.Characteristics[serviceStartHandle], c)
}

func (dc *DiscoveryCache) AddDescriptor(charValueHandle uint16, d DiscoveredDescriptor) {
	dc.Descriptors[charValueHandle] = append(dc.Descriptors[charValueHandle], d)
}

// CharacteristicByUUID returns the first discovered characteristic with a
// matching value-type UUID, across every discovered service.
func (dc *DiscoveryCache) CharacteristicByUUID(uuid att.UUID) (DiscoveredCharacteristic, error) {
	for _, chars := range dc.Characteristics {
		for _, c := range chars {
			if c.UUID.Equal(uuid) {
				return c, nil
			}
		}
	}
	return DiscoveredCharacteristic{}, fmt.Errorf("gatt: characteristic %s not discovered", uuid)
}

// DescriptorByUUID returns the first discovered descriptor on charValueHandle
// matching uuid.
func (dc *DiscoveryCache) DescriptorByUUID(charValueHandle uint16, uuid att.UUID) (DiscoveredDescriptor, error) {
	for _, d := range dc.Descriptors[charValueHandle] {
		if d.UUID.Equal(uuid) {
			return d, nil
		}
	}
	return DiscoveredDescriptor{}, fmt.Errorf("gatt: descriptor %s not discovered on handle 0x%04X", uuid, charValueHandle)
}

// CharacteristicByValueHandle returns the discovered characteristic whose
// value attribute sits at handle, across every discovered service. Used to
// resolve an incoming notification or indication's handle back to the
// characteristic a Listener can match against.
func (dc *DiscoveryCache) CharacteristicByValueHandle(handle uint16) (DiscoveredCharacteristic, bool) {
	for _, chars := range dc.Characteristics {
		for _, c := range chars {
			if c.ValueHandle == handle {
				return c, true
			}
		}
	}
	return DiscoveredCharacteristic{}, false
}

// HasService reports whether uuid has already been recorded.
func (dc *DiscoveryCache) HasService(uuid att.UUID) bool {
	for _, s := range dc.Services {
		if s.UUID.Equal(uuid) {
			return true
		}
	}
	return false
}

// ParseReadByGroupTypeResponse decodes a service-discovery response PDU into
// DiscoveredService entries.
func ParseReadByGroupTypeResponse(r *att.ReadByGroupTypeResponse) ([]DiscoveredService, error) {
	n, err := r.NumElements()
	if err != nil {
		return nil, err
	}
	out := make([]DiscoveredService, 0, n)
	for i := 0; i < n; i++ {
		start, end, uuid, err := r.ElementAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, DiscoveredService{UUID: uuid, StartHandle: start, EndHandle: end})
	}
	return out, nil
}

// ParseReadByTypeResponse decodes a characteristic-discovery response PDU
// into DiscoveredCharacteristic entries belonging to serviceStartHandle.
func ParseReadByTypeResponse(r *att.ReadByTypeResponse, serviceStartHandle uint16) ([]DiscoveredCharacteristic, error) {
	n, err := r.NumElements()
	if err != nil {
		return nil, err
	}
	out := make([]DiscoveredCharacteristic, 0, n)
	for i := 0; i < n; i++ {
		decl, props, val, uuid, err := r.ElementAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, DiscoveredCharacteristic{
			UUID: uuid, Properties: props, DeclHandle: decl, ValueHandle: val,
			ServiceStartHandle: serviceStartHandle,
		})
	}
	return out, nil
}

// ParseFindInformationResponse decodes a descriptor-discovery response PDU
// into DiscoveredDescriptor entries.
func ParseFindInformationResponse(r *att.FindInformationResponse) ([]DiscoveredDescriptor, error) {
	n, err := r.NumElements()
	if err != nil {
		return nil, err
	}
	out := make([]DiscoveredDescriptor, 0, n)
	for i := 0; i < n; i++ {
		handle, uuid, err := r.ElementAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, DiscoveredDescriptor{UUID: uuid, Handle: handle})
	}
	return out, nil
}

// --- server-side response building ---------------------------------------

// BuildReadByGroupTypeResponse serves a primary-service discovery request
// from db, truncating the element list so the encoded PDU fits within mtu.
// Returns (nil, false) if no matching service starts in range.
func BuildReadByGroupTypeResponse(db *Database, startHandle, endHandle uint16, mtu int) (*att.ReadByGroupTypeResponse, bool) {
	services := db.ServicesByType(startHandle, endHandle, UUIDPrimaryService)
	if len(services) == 0 {
		return nil, false
	}
	uuidWidth := services[0].UUID.Width()
	fit := 0
	for _, s := range services {
		if s.UUID.Width() != uuidWidth {
			break
		}
		fit++
	}
	resp := att.NewReadByGroupTypeResponseBuffer(uuidWidth, fit)
	maxElems := maxElementsForMTU(mtu, 4+uuidWidth)
	if maxElems < fit {
		fit = maxElems
	}
	for i := 0; i < fit; i++ {
		_ = resp.SetElement(i, services[i].StartHandle(), services[i].EndHandle(), services[i].UUID)
	}
	_ = resp.Resize(fit)
	return resp, true
}

// BuildReadByTypeResponse serves a characteristic-discovery request (or any
// other "read by type" request against a uniform-width attribute run),
// using AttributesByTypeInRange and reading each matching attribute's
// declaration value back out of db.
func BuildReadByTypeResponse(db *Database, startHandle, endHandle uint16, typ att.UUID, mtu int) (*att.ReadByTypeResponse, bool) {
	handles := db.AttributesByTypeInRange(startHandle, endHandle, typ)
	if len(handles) == 0 {
		return nil, false
	}
	first, err := db.AttributeByHandle(handles[0])
	if err != nil {
		return nil, false
	}
	elemLen := len(first.Value)
	fit := 0
	for _, h := range handles {
		a, err := db.AttributeByHandle(h)
		if err != nil || len(a.Value) != elemLen {
			break
		}
		fit++
	}
	maxElems := maxElementsForMTU(mtu, 2+elemLen)
	if maxElems < fit {
		fit = maxElems
	}
	resp := &att.ReadByTypeResponse{Length: uint8(2 + elemLen), AttributeData: make([]byte, fit*(2+elemLen))}
	for i := 0; i < fit; i++ {
		a, _ := db.AttributeByHandle(handles[i])
		off := i * (2 + elemLen)
		resp.AttributeData[off] = byte(a.Handle)
		resp.AttributeData[off+1] = byte(a.Handle >> 8)
		copy(resp.AttributeData[off+2:], a.Value)
	}
	return resp, true
}

func maxElementsForMTU(mtu, elemSize int) int {
	if elemSize <= 0 {
		return 0
	}
	usable := mtu - 2 // opcode + format/length byte
	if usable > 255 {
		usable = 255
	}
	if usable < 0 {
		return 0
	}
	return usable / elemSize
}
