package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cantemp"
	"cantemp/pkg/analyze"
)

func writeLog(t *testing.T, lines int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.log")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	// Byte 0 differs on every consecutive line.
	for i := 0; i < lines; i++ {
		fmt.Fprintf(f, "(1700000000.%06d) can0 3D3#%02X00\n", i, 0x40+i%0x40)
	}
	return path
}

func TestReplayLogAnalyzesWholeLog(t *testing.T) {
	const lines = 500
	cfg := &cantemp.AdapterConfig{
		Port:      writeLog(t, lines),
		OnMessage: func(string) {},
	}
	an := analyze.New(analyze.DefaultConfig())

	var analyzed int
	err := replayLog(context.Background(), cfg, an, func(analyze.Report) {
		analyzed++
	})
	if err != nil {
		t.Fatalf("replayLog() error = %v", err)
	}
	if analyzed != lines {
		t.Fatalf("analyzed %d of %d frames", analyzed, lines)
	}

	sum := an.Summary()
	if len(sum) != 1 {
		t.Fatalf("len(Summary()) = %d, want 1", len(sum))
	}
	if sum[0].ID != 0x3D3 {
		t.Errorf("Summary()[0].ID = 0x%X, want 0x3D3", sum[0].ID)
	}
	// Every line after the baseline changes byte 0 exactly once.
	if sum[0].Total != lines-1 {
		t.Errorf("summary total = %d, want %d", sum[0].Total, lines-1)
	}

	r, ok := an.Store().Lookup(0x3D3)
	if !ok {
		t.Fatal("record missing after replay")
	}
	if r.ChangeCount[0] != lines-1 {
		t.Errorf("ChangeCount[0] = %d, want %d", r.ChangeCount[0], lines-1)
	}
	if r.ChangeCount[1] != 0 {
		t.Errorf("ChangeCount[1] = %d, want 0", r.ChangeCount[1])
	}
}

func TestReplayLogMissingFile(t *testing.T) {
	cfg := &cantemp.AdapterConfig{
		Port:      filepath.Join(t.TempDir(), "missing.log"),
		OnMessage: func(string) {},
	}
	an := analyze.New(analyze.DefaultConfig())
	if err := replayLog(context.Background(), cfg, an, func(analyze.Report) {}); err == nil {
		t.Fatal("expected error for missing log file")
	}
}
