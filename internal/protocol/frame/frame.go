package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderLen      = 16
	SessionLen     = 10
	BlockPrefixLen = 2

	MaxBlockLen   = 1<<16 - 1
	MaxBlockCount = 1<<16 - 1
)

var (
	ErrInsufficientData = errors.New("frame: insufficient data")
	ErrSessionTooLong   = errors.New("frame: session token longer than 10 bytes")
	ErrBlockTooLarge    = errors.New("frame: block payload too large")
	ErrTooManyBlocks    = errors.New("frame: too many blocks")
)

// Header is the fixed envelope header.
type Header struct {
	Session    string
	Sequence   uint32
	BlockCount uint16
}

// Envelope is one complete transport message. An envelope without blocks is
// a heartbeat.
type Envelope struct {
	Header Header
	Blocks []Block
}

func (e Envelope) IsHeartbeat() bool {
	return len(e.Blocks) == 0
}

// EncodedLen is the number of bytes EncodeEnvelope produces for e.
func (e Envelope) EncodedLen() int {
	n := HeaderLen
	for _, b := range e.Blocks {
		n += BlockPrefixLen + len(b)
	}
	return n
}

// DecodeEnvelope decodes one envelope from the front of b and reports how
// many bytes it consumed.
func DecodeEnvelope(b []byte) (Envelope, int, error) {
	if len(b) < HeaderLen {
		return Envelope{}, 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrInsufficientData, HeaderLen, len(b))
	}
	h := DecodeHeader(b[:HeaderLen])
	env := Envelope{Header: h}
	off := HeaderLen
	if h.BlockCount == 0 {
		return env, off, nil
	}
	env.Blocks = make([]Block, 0, h.BlockCount)
	for i := 0; i < int(h.BlockCount); i++ {
		if len(b)-off < BlockPrefixLen {
			return Envelope{}, 0, fmt.Errorf("%w: block %d length prefix", ErrInsufficientData, i)
		}
		n := int(binary.LittleEndian.Uint16(b[off : off+BlockPrefixLen]))
		off += BlockPrefixLen
		if len(b)-off < n {
			return Envelope{}, 0, fmt.Errorf("%w: block %d declares %d bytes, have %d", ErrInsufficientData, i, n, len(b)-off)
		}
		payload := make([]byte, n)
		copy(payload, b[off:off+n])
		env.Blocks = append(env.Blocks, Block(payload))
		off += n
	}
	return env, off, nil
}

// EncodeEnvelope serializes e. The header block count is always taken from
// len(e.Blocks).
func EncodeEnvelope(e Envelope) ([]byte, error) {
	if len(e.Header.Session) > SessionLen {
		return nil, ErrSessionTooLong
	}
	if len(e.Blocks) > MaxBlockCount {
		return nil, ErrTooManyBlocks
	}
	h := e.Header
	h.BlockCount = uint16(len(e.Blocks))

	buf := make([]byte, 0, e.EncodedLen())
	buf = append(buf, EncodeHeader(h)...)
	for _, b := range e.Blocks {
		if len(b) > MaxBlockLen {
			return nil, ErrBlockTooLarge
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(b)))
		buf = append(buf, b...)
	}
	return buf, nil
}

// ReadEnvelope reads exactly one envelope from r. io.EOF is returned only
// when the stream ends cleanly between envelopes.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Envelope{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Envelope{}, fmt.Errorf("%w: short header", ErrInsufficientData)
		}
		return Envelope{}, err
	}

	h := DecodeHeader(fixed[:])
	env := Envelope{Header: h}
	if h.BlockCount == 0 {
		return env, nil
	}

	env.Blocks = make([]Block, 0, h.BlockCount)
	var prefix [BlockPrefixLen]byte
	for i := 0; i < int(h.BlockCount); i++ {
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			return Envelope{}, shortRead(err, i)
		}
		payload := make([]byte, binary.LittleEndian.Uint16(prefix[:]))
		if len(payload) > 0 {
			if _, err := io.ReadFull(r, payload); err != nil {
				return Envelope{}, shortRead(err, i)
			}
		}
		env.Blocks = append(env.Blocks, Block(payload))
	}
	return env, nil
}

func WriteEnvelope(w io.Writer, e Envelope) error {
	buf, err := EncodeEnvelope(e)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	copy(buf[0:SessionLen], h.Session)
	binary.LittleEndian.PutUint32(buf[10:14], h.Sequence)
	binary.LittleEndian.PutUint16(buf[14:16], h.BlockCount)
	return buf
}

// DecodeHeader parses a fixed header. b must hold at least HeaderLen bytes.
func DecodeHeader(b []byte) Header {
	return Header{
		Session:    trimText(b[0:SessionLen]),
		Sequence:   binary.LittleEndian.Uint32(b[10:14]),
		BlockCount: binary.LittleEndian.Uint16(b[14:16]),
	}
}

func shortRead(err error, block int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: block %d", ErrInsufficientData, block)
	}
	return err
}

func trimText(b []byte) string {
	return string(bytes.TrimRight(b, "\x00 "))
}
