package cantemp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseCandumpLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		id       uint32
		extended bool
		data     []byte
		err      bool
	}{
		{name: "full line", line: "(1699999999.123456) can0 3D3#48001234", id: 0x3D3, data: []byte{0x48, 0x00, 0x12, 0x34}},
		{name: "bare frame", line: "3D3#48AB", id: 0x3D3, data: []byte{0x48, 0xAB}},
		{name: "no payload", line: "410#", id: 0x410, data: []byte{}},
		{name: "extended identifier", line: "18DB33F1#0221", id: 0x18DB33F1, extended: true, data: []byte{0x02, 0x21}},
		{name: "remote request", line: "3B3#R", id: 0x3B3, data: []byte{}},
		{name: "no separator", line: "3D348AB", err: true},
		{name: "bad identifier", line: "XYZ#48AB", err: true},
		{name: "odd payload length", line: "3D3#48A", err: true},
		{name: "payload too long", line: "3D3#48001234480012344800", err: true},
		{name: "bad timestamp", line: "(notatime) can0 3D3#48AB", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseCandumpLine(tt.line)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error for %q", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tt.line, err)
			}
			if f.Identifier != tt.id {
				t.Errorf("identifier = 0x%X, want 0x%X", f.Identifier, tt.id)
			}
			if f.Extended != tt.extended {
				t.Errorf("extended = %v, want %v", f.Extended, tt.extended)
			}
			if !bytes.Equal(f.Data, tt.data) {
				t.Errorf("data = % X, want % X", f.Data, tt.data)
			}
		})
	}
}

func TestReplayDeliversWholeLogThenCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.log")
	log := "3D3#48AB\n" +
		"bogus line\n" +
		"3D3#49AB\n" +
		"\n" +
		"3B3#4211\n"
	if err := os.WriteFile(path, []byte(log), 0o644); err != nil {
		t.Fatal(err)
	}

	var skipped []string
	dev, err := NewReplay(&AdapterConfig{
		Port:      path,
		OnMessage: func(msg string) { skipped = append(skipped, msg) },
	})
	if err != nil {
		t.Fatalf("NewReplay() error = %v", err)
	}
	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer dev.Close()

	// The receive channel must deliver every parseable frame in order
	// and then close; nothing may be lost at end of log.
	var frames []*Frame
	for frame := range dev.Recv() {
		frames = append(frames, frame)
	}
	if len(frames) != 3 {
		t.Fatalf("delivered %d frames, want 3", len(frames))
	}
	want := []uint32{0x3D3, 0x3D3, 0x3B3}
	for i, frame := range frames {
		if frame.Identifier != want[i] {
			t.Errorf("frame %d identifier = 0x%X, want 0x%X", i, frame.Identifier, want[i])
		}
	}
	if len(skipped) != 1 {
		t.Errorf("skipped %d lines, want 1 (the malformed one)", len(skipped))
	}

	select {
	case err := <-dev.Err():
		t.Errorf("unexpected adapter error: %v", err)
	default:
	}
}

func TestParseCandumpLineTimestamp(t *testing.T) {
	f, err := parseCandumpLine("(1699999999.500000) can0 3D3#48AB")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Unix(1699999999, 500000000)
	if d := f.Timestamp.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("timestamp = %v, want %v", f.Timestamp, want)
	}
}
