package frame

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/danmuck/gatewatch/internal/testutil/testlog"
)

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	testlog.Start(t)
	cases := []Envelope{
		{Header: Header{Session: "S1", Sequence: 1}},
		{
			Header: Header{Session: "SESSION001", Sequence: 42, BlockCount: 1},
			Blocks: []Block{Block("Ehello")},
		},
		{
			Header: Header{Session: "RISK", Sequence: 0xfffffffe, BlockCount: 3},
			Blocks: []Block{Block("P1"), Block{}, Block(bytes.Repeat([]byte{0xab}, 300))},
		},
	}
	for _, in := range cases {
		buf, err := EncodeEnvelope(in)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if len(buf) != in.EncodedLen() {
			t.Fatalf("encoded len=%d want=%d", len(buf), in.EncodedLen())
		}
		out, n, err := DecodeEnvelope(buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n != len(buf) {
			t.Fatalf("consumed=%d want=%d", n, len(buf))
		}
		if out.Header != in.Header {
			t.Fatalf("header mismatch: got=%+v want=%+v", out.Header, in.Header)
		}
		if len(out.Blocks) != len(in.Blocks) {
			t.Fatalf("block count mismatch: got=%d want=%d", len(out.Blocks), len(in.Blocks))
		}
		for i := range in.Blocks {
			if !bytes.Equal(out.Blocks[i], in.Blocks[i]) {
				t.Fatalf("block %d mismatch", i)
			}
		}
	}
}

func TestEncodeEnvelopeHeaderLayout(t *testing.T) {
	testlog.Start(t)
	buf, err := EncodeEnvelope(Envelope{
		Header: Header{Session: "AB", Sequence: 0x01020304},
		Blocks: []Block{Block{0x45, 0x01}},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		'A', 'B', 0, 0, 0, 0, 0, 0, 0, 0,
		0x04, 0x03, 0x02, 0x01,
		0x01, 0x00,
		0x02, 0x00, 0x45, 0x01,
	}
	if !bytes.Equal(buf, want) {
		t.Fatalf("layout mismatch:\n got=% x\nwant=% x", buf, want)
	}
}

func TestZeroBlockEnvelopeIsHeartbeat(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Session: "HB", Sequence: 7})
	env, n, err := DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if n != HeaderLen || !env.IsHeartbeat() {
		t.Fatalf("expected heartbeat, got n=%d env=%+v", n, env)
	}
}

func TestDecodeEnvelopeInsufficientData(t *testing.T) {
	testlog.Start(t)
	full, err := EncodeEnvelope(Envelope{
		Header: Header{Session: "X"},
		Blocks: []Block{Block("Eabcdef"), Block("P")},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, cut := range []int{0, 5, HeaderLen, HeaderLen + 1, HeaderLen + 4, len(full) - 1} {
		_, _, err := DecodeEnvelope(full[:cut])
		if !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("cut=%d expected ErrInsufficientData, got %v", cut, err)
		}
	}
}

func TestReadEnvelopeStream(t *testing.T) {
	testlog.Start(t)
	var stream bytes.Buffer
	in := []Envelope{
		{Header: Header{Session: "S", Sequence: 1}},
		{Header: Header{Session: "S", Sequence: 2}, Blocks: []Block{Block("Lline")}},
	}
	for _, env := range in {
		if err := WriteEnvelope(&stream, env); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	for i := range in {
		got, err := ReadEnvelope(&stream)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if got.Header.Sequence != in[i].Header.Sequence {
			t.Fatalf("sequence mismatch: got=%d want=%d", got.Header.Sequence, in[i].Header.Sequence)
		}
	}
	if _, err := ReadEnvelope(&stream); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at clean end, got %v", err)
	}
}

func TestReadEnvelopeTruncatedStream(t *testing.T) {
	testlog.Start(t)
	buf, _ := EncodeEnvelope(Envelope{Header: Header{Session: "S"}, Blocks: []Block{Block("Eabc")}})
	_, err := ReadEnvelope(bytes.NewReader(buf[:len(buf)-1]))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	_, err = ReadEnvelope(bytes.NewReader(buf[:3]))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for short header, got %v", err)
	}
}

func TestEncodeEnvelopeRejectsOversize(t *testing.T) {
	testlog.Start(t)
	if _, err := EncodeEnvelope(Envelope{Header: Header{Session: "ELEVENCHARS"}}); !errors.Is(err, ErrSessionTooLong) {
		t.Fatalf("expected ErrSessionTooLong, got %v", err)
	}
	big := Block(make([]byte, MaxBlockLen+1))
	if _, err := EncodeEnvelope(Envelope{Blocks: []Block{big}}); !errors.Is(err, ErrBlockTooLarge) {
		t.Fatalf("expected ErrBlockTooLarge, got %v", err)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	testlog.Start(t)
	cmds := []Command{
		SetControlCommand("ACC1;MAXQTY=500"),
		GetControlHistoryCommand(""),
		RewindCommand(1234),
	}
	for _, cmd := range cmds {
		b, err := cmd.Block()
		if err != nil {
			t.Fatalf("encode %q: %v", cmd.Tag, err)
		}
		got, err := ParseCommand(b)
		if err != nil {
			t.Fatalf("parse %q: %v", cmd.Tag, err)
		}
		if !reflect.DeepEqual(got, cmd) {
			t.Fatalf("command mismatch: got=%+v want=%+v", got, cmd)
		}
	}
	seq, err := RewindCommand(99).RewindSequence()
	if err != nil || seq != 99 {
		t.Fatalf("rewind sequence got=%d err=%v", seq, err)
	}
}

func TestCommandEnvelopeIsSingleBlock(t *testing.T) {
	testlog.Start(t)
	env, err := RewindCommand(5).Envelope("GW", 10)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	buf, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := append(EncodeHeader(Header{Session: "GW", Sequence: 10, BlockCount: 1}), 0x04, 0x00, 'R', 0x01, 0x00, '5')
	if !bytes.Equal(buf, want) {
		t.Fatalf("layout mismatch:\n got=% x\nwant=% x", buf, want)
	}
}

func TestCommandRejectsUnknownTagAndNonASCII(t *testing.T) {
	testlog.Start(t)
	if _, err := (Command{Tag: 'X'}).Block(); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	if _, err := SetControlCommand("caf\xc3\xa9").Block(); !errors.Is(err, ErrCommandNotASCII) {
		t.Fatalf("expected ErrCommandNotASCII, got %v", err)
	}
	if _, err := ParseCommand(Block{'S', 0x05, 0x00, 'a'}); !errors.Is(err, ErrCommandBody) {
		t.Fatalf("expected ErrCommandBody, got %v", err)
	}
}

func TestBlockTag(t *testing.T) {
	testlog.Start(t)
	if Block(nil).Tag() != 0 || Block(nil).Body() != nil {
		t.Fatalf("empty block should have no tag or body")
	}
	b := Block("Epayload")
	if b.Tag() != TagEmbedded || string(b.Body()) != "payload" || TagName(b.Tag()) != "embedded" {
		t.Fatalf("unexpected tag/body: %q %q", b.Tag(), b.Body())
	}
}
