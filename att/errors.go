package att

import "fmt"

// ATT error codes (Bluetooth Core Spec v5.2, Vol 3, Part F, Section 3.4.1.1).
const (
	ErrInvalidHandle                 = 0x01
	ErrReadNotPermitted              = 0x02
	ErrWriteNotPermitted             = 0x03
	ErrInvalidPDU                    = 0x04
	ErrInsufficientAuthentication    = 0x05
	ErrRequestNotSupported           = 0x06
	ErrInvalidOffset                 = 0x07
	ErrInsufficientAuthorization     = 0x08
	ErrPrepareQueueFull              = 0x09
	ErrAttributeNotFound             = 0x0A
	ErrAttributeNotLong              = 0x0B
	ErrInsufficientEncryptionKeySize = 0x0C
	ErrInvalidAttributeValueLength   = 0x0D
	ErrUnlikelyError                 = 0x0E
	ErrInsufficientEncryption        = 0x0F
	ErrUnsupportedGroupType          = 0x10
	ErrInsufficientResources         = 0x11
	ErrDbOutOfSync                   = 0x12
	ErrForbiddenValue                = 0x13

	ErrApplicationErrorStart = 0x80
	ErrApplicationErrorEnd   = 0x9F

	ErrCommonErrorStart = 0xE0
	ErrCommonErrorEnd   = 0xFF
)

var errorNames = map[uint8]string{
	ErrInvalidHandle:                 "Invalid Handle",
	ErrReadNotPermitted:              "Read Not Permitted",
	ErrWriteNotPermitted:             "Write Not Permitted",
	ErrInvalidPDU:                    "Invalid PDU",
	ErrInsufficientAuthentication:    "Insufficient Authentication",
	ErrRequestNotSupported:           "Request Not Supported",
	ErrInvalidOffset:                 "Invalid Offset",
	ErrInsufficientAuthorization:     "Insufficient Authorization",
	ErrPrepareQueueFull:              "Prepare Queue Full",
	ErrAttributeNotFound:             "Attribute Not Found",
	ErrAttributeNotLong:              "Attribute Not Long",
	ErrInsufficientEncryptionKeySize: "Insufficient Encryption Key Size",
	ErrInvalidAttributeValueLength:   "Invalid Attribute Value Length",
	ErrUnlikelyError:                 "Unlikely Error",
	ErrInsufficientEncryption:        "Insufficient Encryption",
	ErrUnsupportedGroupType:          "Unsupported Group Type",
	ErrInsufficientResources:         "Insufficient Resources",
	ErrDbOutOfSync:                   "Database Out Of Sync",
	ErrForbiddenValue:                "Forbidden Value",
}

// Error is the Go representation of an ATT ERROR_RSP: a protocol-level
// rejection of a single request, identified by the opcode that caused it
// and the offending handle (0 if none).
type Error struct {
	Code          uint8
	RequestOpcode uint8
	Handle        uint16
}

func (e *Error) Error() string {
	name, ok := errorNames[e.Code]
	if !ok {
		switch {
		case e.Code >= ErrApplicationErrorStart && e.Code <= ErrApplicationErrorEnd:
			name = fmt.Sprintf("Application Error (0x%02X)", e.Code)
		case e.Code >= ErrCommonErrorStart && e.Code <= ErrCommonErrorEnd:
			name = fmt.Sprintf("Common Profile Error (0x%02X)", e.Code)
		default:
			name = fmt.Sprintf("Unknown Error (0x%02X)", e.Code)
		}
	}
	return fmt.Sprintf("att: %s (handle 0x%04X, request %s)", name, e.Handle, OpcodeName(e.RequestOpcode))
}

// NewError builds an *Error for the given code/request/handle triple.
func NewError(code, requestOpcode uint8, handle uint16) *Error {
	return &Error{Code: code, RequestOpcode: requestOpcode, Handle: handle}
}

// CodeOf extracts the ATT error code carried by err, if any.
func CodeOf(err error) (uint8, bool) {
	if ae, ok := err.(*Error); ok {
		return ae.Code, true
	}
	return 0, false
}

// MalformedPDUError reports that a received frame could not be decoded
// because its declared sizes exceed the buffer it came in.
type MalformedPDUError struct {
	Opcode uint8
	Reason string
}

func (e *MalformedPDUError) Error() string {
	return fmt.Sprintf("att: malformed PDU (opcode 0x%02X): %s", e.Opcode, e.Reason)
}
