// Package notify puts gesture transitions on the wire and reads them back.
package notify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// Format selects the datagram layout.
type Format int

const (
	// FormatPayload sends the bare payload, e.g. "1000".
	FormatPayload Format = iota
	// FormatLandmarks appends the 21 landmarks as pixel integers:
	// "1000 x0 y0 ... x20 y20".
	FormatLandmarks
)

func (f Format) String() string {
	if f == FormatLandmarks {
		return "landmarks"
	}
	return "payload"
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "payload", "":
		*f = FormatPayload
	case "landmarks":
		*f = FormatLandmarks
	default:
		return fmt.Errorf("unknown wire format %q", text)
	}
	return nil
}

// StopCommand asks a receiver to shut down.
const StopCommand = "stop"

// StopReply is the receiver's answer to StopCommand.
const StopReply = "Terminating Program.\n"

// Message is a decoded datagram.
type Message struct {
	Payload gesture.Payload
	// Landmarks holds x,y pixel pairs when the sender used FormatLandmarks.
	Landmarks []int
}

var errNoFrame = errors.New("transition has no frame")

// Encode renders a transition as a datagram. width and height are the pixel
// dimensions used by FormatLandmarks.
func Encode(tr *gesture.Transition, format Format, width, height int) ([]byte, error) {
	if tr == nil {
		return nil, errors.New("encode: nil transition")
	}
	if format != FormatLandmarks {
		return []byte(tr.Payload), nil
	}
	if tr.Frame == nil {
		return nil, fmt.Errorf("encode: %w", errNoFrame)
	}
	coords := tr.Frame.PixelInts(width, height)
	if coords == nil {
		return nil, fmt.Errorf("encode: invalid frame size %dx%d", width, height)
	}

	var sb strings.Builder
	sb.WriteString(string(tr.Payload))
	for _, c := range coords {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(c))
	}
	return []byte(sb.String()), nil
}

// Decode parses a gesture datagram in either format.
func Decode(b []byte) (Message, error) {
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return Message{}, errors.New("decode: empty datagram")
	}

	p, err := gesture.ParsePayload(fields[0])
	if err != nil {
		return Message{}, fmt.Errorf("decode: %w", err)
	}
	msg := Message{Payload: p}

	rest := fields[1:]
	if len(rest) == 0 {
		return msg, nil
	}
	if len(rest) != 2*detector.NumLandmarks {
		return Message{}, fmt.Errorf("decode: got %d coordinates, want %d", len(rest), 2*detector.NumLandmarks)
	}
	msg.Landmarks = make([]int, len(rest))
	for i, s := range rest {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Message{}, fmt.Errorf("decode: coordinate %d: %w", i, err)
		}
		msg.Landmarks[i] = v
	}
	return msg, nil
}
