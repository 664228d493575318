package att

import "fmt"

// ATT opcodes (Bluetooth Core Spec v5.2, Vol 3, Part F, Section 3.4).
const (
	OpUndefined uint8 = 0x00

	OpErrorResponse = 0x01

	OpExchangeMTURequest  = 0x02
	OpExchangeMTUResponse = 0x03

	OpFindInformationRequest  = 0x04
	OpFindInformationResponse = 0x05

	OpFindByTypeValueRequest  = 0x06
	OpFindByTypeValueResponse = 0x07

	OpReadByTypeRequest  = 0x08
	OpReadByTypeResponse = 0x09

	OpReadRequest  = 0x0A
	OpReadResponse = 0x0B

	OpReadBlobRequest  = 0x0C
	OpReadBlobResponse = 0x0D

	OpReadMultipleRequest  = 0x0E
	OpReadMultipleResponse = 0x0F

	OpReadByGroupTypeRequest  = 0x10
	OpReadByGroupTypeResponse = 0x11

	OpWriteRequest  = 0x12
	OpWriteResponse = 0x13

	OpPrepareWriteRequest  = 0x16
	OpPrepareWriteResponse = 0x17
	OpExecuteWriteRequest  = 0x18
	OpExecuteWriteResponse = 0x19

	OpHandleValueNotification = 0x1B
	OpHandleValueIndication   = 0x1D
	OpHandleValueConfirmation = 0x1E

	OpReadMultipleVariableRequest  = 0x20
	OpReadMultipleVariableResponse = 0x21

	OpWriteCommand       = 0x52
	OpSignedWriteCommand = 0xD2
)

var opcodeNames = map[uint8]string{
	OpErrorResponse:                "Error Response",
	OpExchangeMTURequest:           "Exchange MTU Request",
	OpExchangeMTUResponse:          "Exchange MTU Response",
	OpFindInformationRequest:       "Find Information Request",
	OpFindInformationResponse:      "Find Information Response",
	OpFindByTypeValueRequest:       "Find By Type Value Request",
	OpFindByTypeValueResponse:      "Find By Type Value Response",
	OpReadByTypeRequest:            "Read By Type Request",
	OpReadByTypeResponse:           "Read By Type Response",
	OpReadRequest:                  "Read Request",
	OpReadResponse:                 "Read Response",
	OpReadBlobRequest:              "Read Blob Request",
	OpReadBlobResponse:             "Read Blob Response",
	OpReadMultipleRequest:          "Read Multiple Request",
	OpReadMultipleResponse:         "Read Multiple Response",
	OpReadMultipleVariableRequest:  "Read Multiple Variable Request",
	OpReadMultipleVariableResponse: "Read Multiple Variable Response",
	OpReadByGroupTypeRequest:       "Read By Group Type Request",
	OpReadByGroupTypeResponse:      "Read By Group Type Response",
	OpWriteRequest:                 "Write Request",
	OpWriteResponse:                "Write Response",
	OpWriteCommand:                 "Write Command",
	OpSignedWriteCommand:           "Signed Write Command",
	OpPrepareWriteRequest:          "Prepare Write Request",
	OpPrepareWriteResponse:         "Prepare Write Response",
	OpExecuteWriteRequest:          "Execute Write Request",
	OpExecuteWriteResponse:         "Execute Write Response",
	OpHandleValueNotification:      "Handle Value Notification",
	OpHandleValueIndication:        "Handle Value Indication",
	OpHandleValueConfirmation:      "Handle Value Confirmation",
}

// OpcodeName returns a human-readable name for logging, falling back to the
// numeric form for unrecognised opcodes.
func OpcodeName(opcode uint8) string {
	if name, ok := opcodeNames[opcode]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%02X)", opcode)
}

// Kind classifies an opcode for dispatch.
type Kind int

const (
	KindUndefined Kind = iota
	KindRequest
	KindResponse
	KindCommand
	KindNotification
	KindIndication
	KindConfirmation
)

// ClassifyOpcode returns the Kind used to route a parsed PDU.
func ClassifyOpcode(opcode uint8) Kind {
	switch opcode {
	case OpExchangeMTURequest, OpFindInformationRequest, OpFindByTypeValueRequest,
		OpReadByTypeRequest, OpReadRequest, OpReadBlobRequest, OpReadMultipleRequest,
		OpReadMultipleVariableRequest,
		OpReadByGroupTypeRequest, OpWriteRequest, OpPrepareWriteRequest, OpExecuteWriteRequest:
		return KindRequest
	case OpErrorResponse, OpExchangeMTUResponse, OpFindInformationResponse, OpFindByTypeValueResponse,
		OpReadByTypeResponse, OpReadResponse, OpReadBlobResponse, OpReadMultipleResponse,
		OpReadMultipleVariableResponse,
		OpReadByGroupTypeResponse, OpWriteResponse, OpPrepareWriteResponse, OpExecuteWriteResponse:
		return KindResponse
	case OpWriteCommand, OpSignedWriteCommand:
		return KindCommand
	case OpHandleValueNotification:
		return KindNotification
	case OpHandleValueIndication:
		return KindIndication
	case OpHandleValueConfirmation:
		return KindConfirmation
	default:
		return KindUndefined
	}
}

// ResponseOpcodeFor returns the expected response/confirmation opcode for a
// request opcode, or 0 if the opcode has none (e.g. commands).
func ResponseOpcodeFor(requestOpcode uint8) uint8 {
	switch requestOpcode {
	case OpExchangeMTURequest:
		return OpExchangeMTUResponse
	case OpFindInformationRequest:
		return OpFindInformationResponse
	case OpFindByTypeValueRequest:
		return OpFindByTypeValueResponse
	case OpReadByTypeRequest:
		return OpReadByTypeResponse
	case OpReadRequest:
		return OpReadResponse
	case OpReadBlobRequest:
		return OpReadBlobResponse
	case OpReadMultipleRequest:
		return OpReadMultipleResponse
	case OpReadMultipleVariableRequest:
		return OpReadMultipleVariableResponse
	case OpReadByGroupTypeRequest:
		return OpReadByGroupTypeResponse
	case OpWriteRequest:
		return OpWriteResponse
	case OpPrepareWriteRequest:
		return OpPrepareWriteResponse
	case OpExecuteWriteRequest:
		return OpExecuteWriteResponse
	case OpHandleValueIndication:
		return OpHandleValueConfirmation
	default:
		return 0
	}
}
