package gatt

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/user/gattwire/att"
)

// Well-known GATT declaration and descriptor UUIDs.
var (
	UUIDPrimaryService   = att.UUID16(0x2800)
	UUIDSecondaryService = att.UUID16(0x2801)
	UUIDInclude          = att.UUID16(0x2802)
	UUIDCharacteristic   = att.UUID16(0x2803)

	UUIDCharExtProps               = att.UUID16(0x2900)
	UUIDCharUserDescription        = att.UUID16(0x2901)
	UUIDClientCharacteristicConfig = att.UUID16(0x2902)
	UUIDServerCharacteristicConfig = att.UUID16(0x2903)
	UUIDCharPresentationFormat     = att.UUID16(0x2904)
	UUIDCharAggregateFormat        = att.UUID16(0x2905)
)

// Characteristic property bits, as carried in a characteristic declaration.
const (
	PropBroadcast                 uint8 = 0x01
	PropRead                      uint8 = 0x02
	PropWriteWithoutResponse      uint8 = 0x04
	PropWrite                     uint8 = 0x08
	PropNotify                    uint8 = 0x10
	PropIndicate                  uint8 = 0x20
	PropAuthenticatedSignedWrites uint8 = 0x40
	PropExtendedProperties        uint8 = 0x80
)

// Server-side permission bits. These never go over the air. PermReadable and
// PermWritable gate the responder's read/write handling of an attribute;
// the responder does not check PermReadEncrypt or PermWriteEncrypt.
const (
	PermReadable     uint8 = 0x01
	PermWritable     uint8 = 0x02
	PermReadEncrypt  uint8 = 0x04
	PermWriteEncrypt uint8 = 0x08
)

// Attribute is one row of the flat handle-addressed table a Database
// maintains underneath its Service/Characteristic/Descriptor view.
type Attribute struct {
	Handle      uint16
	Type        att.UUID
	Value       []byte
	Permissions uint8

	// FixedLength requires every write to this attribute to be exactly
	// len(Value) bytes at offset 0, mirroring a characteristic value whose
	// format has a constant size (e.g. a 16-bit measurement).
	FixedLength bool

	// MaxLength caps a variable-length attribute's value; 0 means
	// unbounded (aside from the ATT_MTU limits each PDU already enforces).
	// Ignored when FixedLength is set.
	MaxLength int

	// OwnerValueHandle is the characteristic value handle this attribute
	// belongs to: itself for a value attribute, the enclosing
	// characteristic's value handle for a descriptor. Zero for service and
	// characteristic declaration attributes, which have no owning value.
	OwnerValueHandle uint16
}

// Descriptor is a characteristic descriptor pending handle assignment.
type Descriptor struct {
	Type        att.UUID
	Value       []byte
	Permissions uint8
	FixedLength bool
	MaxLength   int

	handle uint16
}

// SetFixedLength marks the descriptor as fixed-length: a write must supply
// exactly len(Value) bytes at offset 0.
func (d *Descriptor) SetFixedLength() *Descriptor {
	d.FixedLength = true
	return d
}

// SetMaxLength caps how long a variable-length descriptor value may grow.
func (d *Descriptor) SetMaxLength(n int) *Descriptor {
	d.MaxLength = n
	return d
}

// Handle returns the descriptor's assigned handle. Valid only after
// AssignHandles has run.
func (d *Descriptor) Handle() uint16 { return d.handle }

// Characteristic is a characteristic pending handle assignment, with its
// value attribute and descriptors (CCCD included, if requested).
type Characteristic struct {
	UUID        att.UUID
	Properties  uint8
	Permissions uint8
	Value       []byte
	Descriptors []*Descriptor
	FixedLength bool
	MaxLength   int

	declHandle  uint16
	valueHandle uint16
}

// SetFixedLength marks the characteristic's value attribute as fixed-length:
// a write must supply exactly len(Value) bytes at offset 0.
func (c *Characteristic) SetFixedLength() *Characteristic {
	c.FixedLength = true
	return c
}

// SetMaxLength caps how long a variable-length characteristic value may grow
// under WRITE_REQ or a staged PREPARE_WRITE_REQ/EXECUTE_WRITE_REQ sequence.
func (c *Characteristic) SetMaxLength(n int) *Characteristic {
	c.MaxLength = n
	return c
}

// DeclHandle returns the characteristic declaration's handle.
func (c *Characteristic) DeclHandle() uint16 { return c.declHandle }

// ValueHandle returns the characteristic value attribute's handle.
func (c *Characteristic) ValueHandle() uint16 { return c.valueHandle }

// AddCCCD appends a Client Characteristic Configuration Descriptor,
// initialised to "notifications and indications disabled".
func (c *Characteristic) AddCCCD() *Descriptor {
	d := &Descriptor{
		Type:        UUIDClientCharacteristicConfig,
		Value:       []byte{0x00, 0x00},
		Permissions: PermReadable | PermWritable,
	}
	c.Descriptors = append(c.Descriptors, d)
	return d
}

// Service is a primary or secondary service pending handle assignment.
type Service struct {
	UUID            att.UUID
	Primary         bool
	Characteristics []*Characteristic

	startHandle uint16
	endHandle   uint16
}

// StartHandle returns the service declaration's handle.
func (s *Service) StartHandle() uint16 { return s.startHandle }

// EndHandle returns the handle of the last attribute nested under this
// service (its own declaration if it has no members).
func (s *Service) EndHandle() uint16 { return s.endHandle }

// AddCharacteristic appends a characteristic to the service.
func (s *Service) AddCharacteristic(uuid att.UUID, properties, permissions uint8, value []byte) *Characteristic {
	c := &Characteristic{UUID: uuid, Properties: properties, Permissions: permissions, Value: value}
	s.Characteristics = append(s.Characteristics, c)
	return c
}

// Database is the handle-addressed attribute table backing a GATT server or
// the flattened view of a client's discovery results. Services are declared
// in the order they should be numbered; AssignHandles performs the single
// contiguous pass over them.
type Database struct {
	mu         sync.RWMutex
	services   []*Service
	attributes map[uint16]*Attribute
	assigned   bool
}

// NewDatabase returns an empty, unassigned database.
func NewDatabase() *Database {
	return &Database{attributes: make(map[uint16]*Attribute)}
}

// AddService appends a service declaration. Must be called before
// AssignHandles.
func (db *Database) AddService(uuid att.UUID, primary bool) *Service {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := &Service{UUID: uuid, Primary: primary}
	db.services = append(db.services, s)
	return s
}

// AssignHandles performs the single contiguous numbering pass: each service
// declaration, its characteristic declarations, value attributes, and
// descriptors receive strictly increasing handles starting at 1, with every
// member's handle falling inside [service.startHandle, service.endHandle].
// Calling it more than once is an error; the layout is fixed once assigned.
func (db *Database) AssignHandles() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.assigned {
		return errors.New("gatt: handles already assigned")
	}

	next := uint16(1)
	attrs := make(map[uint16]*Attribute)

	for _, svc := range db.services {
		svc.startHandle = next
		svcType := UUIDSecondaryService
		if svc.Primary {
			svcType = UUIDPrimaryService
		}
		attrs[next] = &Attribute{Handle: next, Type: svcType, Value: svc.UUID.Bytes(), Permissions: PermReadable}
		next++

		for _, ch := range svc.Characteristics {
			ch.declHandle = next
			declValue := make([]byte, 3+ch.UUID.Width())
			declValue[0] = ch.Properties
			declValue[1] = byte(next + 1)
			declValue[2] = byte((next + 1) >> 8)
			copy(declValue[3:], ch.UUID.Bytes())
			attrs[next] = &Attribute{Handle: next, Type: UUIDCharacteristic, Value: declValue, Permissions: PermReadable}
			next++

			ch.valueHandle = next
			attrs[next] = &Attribute{
				Handle: next, Type: ch.UUID, Value: ch.Value, Permissions: ch.Permissions,
				FixedLength: ch.FixedLength, MaxLength: ch.MaxLength, OwnerValueHandle: next,
			}
			next++

			for _, d := range ch.Descriptors {
				d.handle = next
				attrs[next] = &Attribute{
					Handle: next, Type: d.Type, Value: d.Value, Permissions: d.Permissions,
					FixedLength: d.FixedLength, MaxLength: d.MaxLength, OwnerValueHandle: ch.valueHandle,
				}
				next++
			}
		}

		svc.endHandle = next - 1
	}

	db.attributes = attrs
	db.assigned = true
	return nil
}

// Assigned reports whether AssignHandles has run.
func (db *Database) Assigned() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.assigned
}

// AttributeByHandle looks up a single attribute by its handle.
func (db *Database) AttributeByHandle(handle uint16) (*Attribute, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	a, ok := db.attributes[handle]
	if !ok {
		return nil, fmt.Errorf("gatt: no attribute at handle 0x%04X", handle)
	}
	return copyAttribute(a), nil
}

// SetAttributeValue overwrites an attribute's value in place, used by the
// responder when a write request or CCCD update lands on a handle.
func (db *Database) SetAttributeValue(handle uint16, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	a, ok := db.attributes[handle]
	if !ok {
		return fmt.Errorf("gatt: no attribute at handle 0x%04X", handle)
	}
	a.Value = append([]byte{}, value...)
	return nil
}

// ServicesByType returns every service in [startHandle, endHandle] whose
// declaration UUID matches typ (read by group type), ordered by handle.
func (db *Database) ServicesByType(startHandle, endHandle uint16, typ att.UUID) []*Service {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []*Service
	for _, svc := range db.services {
		if svc.startHandle < startHandle || svc.startHandle > endHandle {
			continue
		}
		declType := UUIDSecondaryService
		if svc.Primary {
			declType = UUIDPrimaryService
		}
		if declType.Equal(typ) {
			out = append(out, svc)
		}
	}
	return out
}

// AttributesByTypeInRange returns handles in [start, end] whose declared
// type matches typ, in ascending order (read by type).
func (db *Database) AttributesByTypeInRange(start, end uint16, typ att.UUID) []uint16 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var handles []uint16
	for h := start; h <= end && h != 0; h++ {
		a, ok := db.attributes[h]
		if ok && a.Type.Equal(typ) {
			handles = append(handles, h)
		}
		if h == 0xFFFF {
			break
		}
	}
	return handles
}

// CharacteristicByUUID finds the first characteristic with the given value
// UUID across every service, returning the owning service too.
func (db *Database) CharacteristicByUUID(uuid att.UUID) (*Service, *Characteristic, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, svc := range db.services {
		for _, ch := range svc.Characteristics {
			if ch.UUID.Equal(uuid) {
				return svc, ch, true
			}
		}
	}
	return nil, nil, false
}

// CharacteristicByValueHandle finds the characteristic whose value attribute
// is at handle, used by the responder to mask a CCCD write against the
// characteristic's declared Notify/Indicate properties.
func (db *Database) CharacteristicByValueHandle(handle uint16) (*Characteristic, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, svc := range db.services {
		for _, ch := range svc.Characteristics {
			if ch.valueHandle == handle {
				return ch, true
			}
		}
	}
	return nil, false
}

// HandleRange returns the lowest and highest assigned handle, or (0, 0) for
// an empty database.
func (db *Database) HandleRange() (uint16, uint16) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if len(db.attributes) == 0 {
		return 0, 0
	}
	var first uint16 = 0xFFFF
	var last uint16
	for h := range db.attributes {
		if h < first {
			first = h
		}
		if h > last {
			last = h
		}
	}
	return first, last
}

// Services returns the services in declaration order.
func (db *Database) Services() []*Service {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Service, len(db.services))
	copy(out, db.services)
	return out
}

func copyAttribute(a *Attribute) *Attribute {
	return &Attribute{
		Handle:           a.Handle,
		Type:             a.Type,
		Value:            append([]byte{}, a.Value...),
		Permissions:      a.Permissions,
		FixedLength:      a.FixedLength,
		MaxLength:        a.MaxLength,
		OwnerValueHandle: a.OwnerValueHandle,
	}
}
