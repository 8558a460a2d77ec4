package wlink

import "fmt"

// Wire markers per spec.md §3/§6.
const (
	markerRequest  = 0x81 // also reused as the error-response marker
	markerResponse = 0x82

	maxPayloadLen = 60 // spec.md §6: LEN is payload-only, ≤ 60
	reasonNotAttached = 0x55
)

// Command is anything that can be framed onto the control endpoint. A
// command supplies only its ID and payload (SetWriteMemoryRegion, Program,
// FlashProtectCmd, DmiCmd, ...); responses are decoded by DecodeResponse
// and the caller, not by the command. RawCommand is the escape hatch for
// ad-hoc experimentation without adding a new type (spec.md §4.2).
type Command interface {
	// CommandID is the single byte identifying this command on the wire.
	CommandID() byte
	// Payload is the request payload, length ≤ maxPayloadLen.
	Payload() []byte
}

// EncodeRequest frames cmd as [0x81, CMD, LEN, ...payload].
func EncodeRequest(cmd Command) ([]byte, error) {
	payload := cmd.Payload()
	if len(payload) > maxPayloadLen {
		return nil, newErr(KindInvalidPayloadLength, fmt.Sprintf("payload length %d exceeds %d", len(payload), maxPayloadLen))
	}
	frame := make([]byte, 0, 3+len(payload))
	frame = append(frame, markerRequest, cmd.CommandID(), byte(len(payload)))
	frame = append(frame, payload...)
	return frame, nil
}

// DecodeResponse validates and strips the generic 3-byte header from a
// control-endpoint response, per spec.md §4.2's generic decoder:
//   - 0x82 header → success, returns the payload.
//   - 0x81 header → Protocol error carrying the reason byte and raw frame.
//   - any other leading byte → InvalidPayload.
//
// Commands whose response is not length-prefixed in the usual way (the
// electronic-signature response) bypass this and parse the raw frame
// themselves.
func DecodeResponse(frame []byte) ([]byte, error) {
	if len(frame) < 3 {
		return nil, newErr(KindInvalidPayload, "frame shorter than header")
	}

	switch frame[0] {
	case markerResponse:
		length := int(frame[2])
		payload := frame[3:]
		if length != len(payload) {
			return nil, newErr(KindInvalidPayloadLength, fmt.Sprintf("declared length %d != actual %d", length, len(payload)))
		}
		return payload, nil
	case markerRequest: // 0x81 reused as error marker
		reason := frame[1]
		return nil, &LinkError{
			Kind:   KindProtocol,
			Msg:    fmt.Sprintf("device returned error reason 0x%02X", reason),
			Reason: reason,
			Frame:  append([]byte(nil), frame...),
		}
	default:
		return nil, newErr(KindInvalidPayload, fmt.Sprintf("unexpected leading byte 0x%02X", frame[0]))
	}
}

// IsNotAttachedReason reports whether a Protocol error's reason byte is the
// chip-not-attached sentinel (spec.md §4.2).
func IsNotAttachedReason(reason byte) bool { return reason == reasonNotAttached }

// RawCommand is an escape hatch: a command whose ID and payload are both
// supplied directly, permitting ad-hoc experimentation without declaring a
// new Command type (spec.md §4.2: "RawCommand<ID>(bytes)").
type RawCommand struct {
	ID    byte
	Bytes []byte
}

func (r RawCommand) CommandID() byte { return r.ID }
func (r RawCommand) Payload() []byte { return r.Bytes }
