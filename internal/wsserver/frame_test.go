package wsserver

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTripSmall(t *testing.T) {
	payload := []byte("hello")
	encoded := encodeFrame(opBinary, payload)
	opcode, got, err := decodeFrame(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opcode != opBinary {
		t.Fatalf("opcode = %d", opcode)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestEncodeDecode16BitLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 1000)
	encoded := encodeFrame(opText, payload)
	_, got, err := decodeFrame(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch")
	}
}

func TestDecodeMaskedClientFrame(t *testing.T) {
	payload := []byte("SET_BAR_COUNT:16")
	maskKey := [4]byte{0x11, 0x22, 0x33, 0x44}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ maskKey[i%4]
	}

	header := []byte{0x80 | opText, 0x80 | byte(len(payload))}
	frame := append(header, maskKey[:]...)
	frame = append(frame, masked...)

	opcode, got, err := decodeFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opcode != opText {
		t.Fatalf("opcode = %d", opcode)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestDecodeOversizedPayloadRejected(t *testing.T) {
	header := []byte{0x80 | opText, 127}
	var lenBytes [8]byte
	big := uint64(maxClientPayload + 1)
	for i := 7; i >= 0; i-- {
		lenBytes[i] = byte(big)
		big >>= 8
	}
	frame := append(header, lenBytes[:]...)

	_, _, err := decodeFrame(bytes.NewReader(frame))
	if err != ErrClientProtocolViolation {
		t.Fatalf("got %v, want ErrClientProtocolViolation", err)
	}
}
