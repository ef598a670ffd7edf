package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

// Block tags, carried as the first payload byte.
const (
	TagPosition byte = 'P'
	TagCapital  byte = 'C'
	TagLog      byte = 'L'
	TagControl  byte = 'K'
	TagEmbedded byte = 'E'
)

// Outbound command tags.
const (
	CommandSetControl        byte = 'S'
	CommandGetControlHistory byte = 'G'
	CommandRewind            byte = 'R'
)

var (
	ErrEmptyBlock       = errors.New("frame: empty block")
	ErrUnknownCommand   = errors.New("frame: unknown command tag")
	ErrCommandBody      = errors.New("frame: malformed command body")
	ErrCommandNotASCII  = errors.New("frame: command body is not ascii")
	ErrCommandBodyLarge = errors.New("frame: command body too large")
)

// Block is one length-prefixed payload inside an envelope.
type Block []byte

// Tag returns the first payload byte, or 0 for an empty block.
func (b Block) Tag() byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// Body returns the payload after the tag byte.
func (b Block) Body() []byte {
	if len(b) <= 1 {
		return nil
	}
	return b[1:]
}

func TagName(tag byte) string {
	switch tag {
	case TagPosition:
		return "position"
	case TagCapital:
		return "capital"
	case TagLog:
		return "log"
	case TagControl:
		return "control"
	case TagEmbedded:
		return "embedded"
	default:
		return "unknown"
	}
}

// Command is an outbound control request encoded as a single block.
type Command struct {
	Tag  byte
	Body string
}

func SetControlCommand(body string) Command {
	return Command{Tag: CommandSetControl, Body: body}
}

func GetControlHistoryCommand(filter string) Command {
	return Command{Tag: CommandGetControlHistory, Body: filter}
}

func RewindCommand(fromSequence uint32) Command {
	return Command{Tag: CommandRewind, Body: strconv.FormatUint(uint64(fromSequence), 10)}
}

// Block encodes c as tag | u16 length | ascii body.
func (c Command) Block() (Block, error) {
	if !knownCommand(c.Tag) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Tag)
	}
	if len(c.Body) > MaxBlockLen-1-BlockPrefixLen {
		return nil, ErrCommandBodyLarge
	}
	for i := 0; i < len(c.Body); i++ {
		if c.Body[i] > 0x7f {
			return nil, ErrCommandNotASCII
		}
	}
	buf := make([]byte, 0, 1+BlockPrefixLen+len(c.Body))
	buf = append(buf, c.Tag)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(c.Body)))
	buf = append(buf, c.Body...)
	return Block(buf), nil
}

// Envelope wraps c in a single-block envelope.
func (c Command) Envelope(session string, sequence uint32) (Envelope, error) {
	b, err := c.Block()
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Header: Header{Session: session, Sequence: sequence, BlockCount: 1},
		Blocks: []Block{b},
	}, nil
}

// ParseCommand is the inverse of Command.Block.
func ParseCommand(b Block) (Command, error) {
	if len(b) == 0 {
		return Command{}, ErrEmptyBlock
	}
	if !knownCommand(b[0]) {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, b[0])
	}
	if len(b) < 1+BlockPrefixLen {
		return Command{}, fmt.Errorf("%w: missing length", ErrCommandBody)
	}
	n := int(binary.LittleEndian.Uint16(b[1:3]))
	if len(b)-3 != n {
		return Command{}, fmt.Errorf("%w: declared %d bytes, have %d", ErrCommandBody, n, len(b)-3)
	}
	return Command{Tag: b[0], Body: string(b[3:])}, nil
}

// RewindSequence returns the sequence carried by a rewind command.
func (c Command) RewindSequence() (uint32, error) {
	if c.Tag != CommandRewind {
		return 0, fmt.Errorf("%w: not a rewind command", ErrCommandBody)
	}
	v, err := strconv.ParseUint(c.Body, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCommandBody, err)
	}
	return uint32(v), nil
}

func knownCommand(tag byte) bool {
	switch tag {
	case CommandSetControl, CommandGetControlHistory, CommandRewind:
		return true
	default:
		return false
	}
}
