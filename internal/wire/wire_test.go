package wire

import (
	"bytes"
	"testing"
)

func TestEncodeArgsDecodeArgsRoundTrip(t *testing.T) {
	args := [][]byte{[]byte("set"), []byte("k"), []byte("v")}
	payload := EncodeArgs(args)
	got, err := DecodeArgs(payload, DefaultMaxMsg)
	if err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	if len(got) != len(args) {
		t.Fatalf("got %d args, want %d", len(got), len(args))
	}
	for i := range args {
		if !bytes.Equal(got[i], args[i]) {
			t.Fatalf("arg %d = %q, want %q", i, got[i], args[i])
		}
	}
}

func TestTryParseFrameIncremental(t *testing.T) {
	frame := EncodeRequestFrame([][]byte{[]byte("get"), []byte("k")})
	// Feed one byte at a time; only the final call should report ok.
	for i := 1; i < len(frame); i++ {
		_, _, ok, err := TryParseFrame(frame[:i], DefaultMaxMsg)
		if err != nil {
			t.Fatalf("unexpected error at %d bytes: %v", i, err)
		}
		if ok {
			t.Fatalf("TryParseFrame reported ok with only %d/%d bytes", i, len(frame))
		}
	}
	payload, consumed, ok, err := TryParseFrame(frame, DefaultMaxMsg)
	if err != nil || !ok {
		t.Fatalf("TryParseFrame on complete frame: ok=%v err=%v", ok, err)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed = %d, want %d", consumed, len(frame))
	}
	args, err := DecodeArgs(payload, DefaultMaxMsg)
	if err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	if string(args[0]) != "get" || string(args[1]) != "k" {
		t.Fatalf("args = %q, %q", args[0], args[1])
	}
}

func TestTryParseFrameRejectsOversize(t *testing.T) {
	buf := EncodeRequestFrame([][]byte{bytes.Repeat([]byte("x"), int(DefaultMaxMsg))})
	_, _, _, err := TryParseFrame(buf, DefaultMaxMsg)
	if err != ErrFrameTooLarge {
		t.Fatalf("TryParseFrame error = %v, want ErrFrameTooLarge", err)
	}
}

func TestDecodeArgsRejectsTrailingBytes(t *testing.T) {
	payload := EncodeArgs([][]byte{[]byte("a")})
	payload = append(payload, 0xFF)
	if _, err := DecodeArgs(payload, DefaultMaxMsg); err != ErrMalformed {
		t.Fatalf("DecodeArgs error = %v, want ErrMalformed", err)
	}
}

func TestDecodeArgsRejectsOverlongArgc(t *testing.T) {
	payload := make([]byte, 4)
	payload[0] = 0xFF
	payload[1] = 0xFF
	payload[2] = 0xFF
	payload[3] = 0xFF
	if _, err := DecodeArgs(payload, DefaultMaxMsg); err != ErrMalformed {
		t.Fatalf("DecodeArgs error = %v, want ErrMalformed", err)
	}
}

// TestScenarioGetOnEmpty checks the exact wire bytes for a GET on a missing key.
func TestScenarioGetOnEmpty(t *testing.T) {
	req := EncodeRequestFrame([][]byte{[]byte("get"), []byte("k")})
	want := []byte{0x10, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 'g', 'e', 't', 0x01, 0x00, 0x00, 0x00, 'k'}
	if !bytes.Equal(req, want) {
		t.Fatalf("request frame = % x, want % x", req, want)
	}
	w := NewReplyWriter()
	w.Nil()
	reply := EncodeFrame(w.Bytes(), DefaultMaxMsg)
	wantReply := []byte{0x01, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(reply, wantReply) {
		t.Fatalf("reply = % x, want % x", reply, wantReply)
	}
}

// TestScenarioSetThenGet checks the exact wire bytes for a SET followed by GET.
func TestScenarioSetThenGet(t *testing.T) {
	w := NewReplyWriter()
	w.Str("v")
	body := w.Bytes()
	wantBody := []byte{0x02, 0x01, 0x00, 0x00, 0x00, 'v'}
	if !bytes.Equal(body, wantBody) {
		t.Fatalf("body = % x, want % x", body, wantBody)
	}
	reply := EncodeFrame(body, DefaultMaxMsg)
	if !bytes.Equal(reply[:4], []byte{0x06, 0x00, 0x00, 0x00}) {
		t.Fatalf("outer length = % x, want 06 00 00 00", reply[:4])
	}
}

// TestScenarioDelPresentThenAbsent checks the exact wire bytes for DEL hit then miss.
func TestScenarioDelPresentThenAbsent(t *testing.T) {
	w := NewReplyWriter()
	w.Int(1)
	want := []byte{0x03, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("body = % x, want % x", w.Bytes(), want)
	}
	w2 := NewReplyWriter()
	w2.Int(0)
	if v, _, err := DecodeValue(w2.Bytes()); err != nil || v.Int != 0 {
		t.Fatalf("decode second DEL reply: %v, %v", v, err)
	}
}

// TestScenarioUnknownCommand checks the exact wire bytes for an unrecognized verb.
func TestScenarioUnknownCommand(t *testing.T) {
	w := NewReplyWriter()
	w.Err(ErrUnknown, "unknown command")
	body := w.Bytes()
	if body[0] != SerErr {
		t.Fatalf("first byte = %d, want SerErr", body[0])
	}
	v, _, err := DecodeValue(body)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if v.ErrCode != ErrUnknown {
		t.Fatalf("ErrCode = %d, want %d", v.ErrCode, ErrUnknown)
	}
}

func TestEncodeFrameReplacesOversizedBodyWithErr2Big(t *testing.T) {
	huge := bytes.Repeat([]byte{0}, DefaultMaxMsg+1)
	frame := EncodeFrame(huge, DefaultMaxMsg)
	body := frame[4:]
	v, _, err := DecodeValue(body)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if v.Tag != SerErr || v.ErrCode != Err2Big {
		t.Fatalf("got tag %d code %d, want SerErr/Err2Big", v.Tag, v.ErrCode)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	w := NewReplyWriter()
	w.ArrHeader(2)
	w.Str("a")
	w.Int(42)
	v, consumed, err := DecodeValue(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if consumed != len(w.Bytes()) {
		t.Fatalf("consumed %d, want %d", consumed, len(w.Bytes()))
	}
	if len(v.Arr) != 2 || v.Arr[0].Str != "a" || v.Arr[1].Int != 42 {
		t.Fatalf("decoded array = %+v", v)
	}
}

func TestDblRoundTrip(t *testing.T) {
	w := NewReplyWriter()
	w.Dbl(3.25)
	v, _, err := DecodeValue(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if v.Tag != SerDbl || v.Dbl != 3.25 {
		t.Fatalf("decoded = %+v, want Dbl 3.25", v)
	}
}
