package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	m "github.com/Meander-Cloud/go-uplink/message"
)

const (
	CodecName = "msgpack"

	currentService = "survey.uplink.v2.SurveyUplink"
	legacyService  = "survey.uplink.v1.SurveyService"
)

var (
	ErrNegotiationFailed = errors.New("protocol negotiation failed")
	ErrHandshakeRejected = errors.New("handshake rejected")
	ErrAckTimeout        = errors.New("acknowledgement timeout")
)

// Codec is forced on both ends of every call, the wire schema is the
// msgpack encoding of the message package structs.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}

func serviceName(mode m.ProtocolMode) string {
	switch mode {
	case m.ProtocolModeCurrent:
		return currentService
	case m.ProtocolModeLegacy:
		return legacyService
	default:
		return ""
	}
}

func handshakeName(mode m.ProtocolMode) string {
	if mode == m.ProtocolModeLegacy {
		return "Hello"
	}
	return "Handshake"
}

func streamName(mode m.ProtocolMode, kind m.Kind) string {
	if mode == m.ProtocolModeLegacy {
		return fmt.Sprintf("Upload%s", kind)
	}
	return fmt.Sprintf("Stream%s", kind)
}

// HandshakeMethod is the full method name of the mode's handshake call.
func HandshakeMethod(mode m.ProtocolMode) string {
	return fmt.Sprintf("/%s/%s", serviceName(mode), handshakeName(mode))
}

// StreamMethod is the full method name of the mode's upload call for kind.
func StreamMethod(mode m.ProtocolMode, kind m.Kind) string {
	return fmt.Sprintf("/%s/%s", serviceName(mode), streamName(mode, kind))
}
