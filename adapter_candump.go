package cantemp

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Replay feeds frames from a candump(1) style log file. The configured
// Port is reused as the log path. Malformed lines are skipped with a
// message; a bad log never aborts the run. Delivery blocks instead of
// dropping and the receive channel is closed at end of log, so a
// consumer draining the channel sees every frame, in order.
type Replay struct {
	*BaseAdapter
}

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "Replay",
		Description:        "candump log file playback",
		RequiresSerialPort: false,
		New:                NewReplay,
	}); err != nil {
		panic(err)
	}
}

func NewReplay(cfg *AdapterConfig) (Adapter, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("no log file given")
	}
	return &Replay{
		BaseAdapter: NewBaseAdapter("Replay", cfg),
	}, nil
}

func (r *Replay) Open(ctx context.Context) error {
	f, err := os.Open(r.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to open log %q: %w", r.cfg.Port, err)
	}
	go r.playback(ctx, f)
	return nil
}

func (r *Replay) Close() error {
	r.BaseAdapter.Close()
	return nil
}

func (r *Replay) playback(ctx context.Context, f *os.File) {
	defer f.Close()
	// The closed channel is the end-of-stream signal: buffered frames
	// drain first, then receives report not-ok. An error racing past
	// the data could truncate the analysis.
	defer close(r.recvChan)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case <-r.closeChan:
			return
		default:
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		frame, err := parseCandumpLine(line)
		if err != nil {
			r.cfg.OnMessage(fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		select {
		case r.recvChan <- frame:
		case <-ctx.Done():
			return
		case <-r.closeChan:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		r.SetError(Unrecoverable(fmt.Errorf("failed to read log: %w", err)))
	}
}

// parseCandumpLine parses one candump -L style line:
//
//	(1699999999.123456) can0 3D3#48001234
//
// The timestamp and interface name are optional; a bare "3D3#48001234"
// is accepted too.
func parseCandumpLine(line string) (*Frame, error) {
	ts := time.Now()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty line")
	}
	body := fields[len(fields)-1]

	if strings.HasPrefix(fields[0], "(") && strings.HasSuffix(fields[0], ")") {
		sec, err := strconv.ParseFloat(strings.Trim(fields[0], "()"), 64)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %v", fields[0], err)
		}
		ts = time.Unix(0, int64(sec*float64(time.Second)))
	}

	idPart, dataPart, found := strings.Cut(body, "#")
	if !found {
		return nil, fmt.Errorf("no identifier separator in %q", body)
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("bad identifier %q: %v", idPart, err)
	}
	// Remote request frames carry no payload worth analyzing.
	dataPart = strings.TrimPrefix(dataPart, "R")
	if len(dataPart)%2 != 0 || len(dataPart) > 16 {
		return nil, fmt.Errorf("bad payload %q", dataPart)
	}
	data, err := hex.DecodeString(dataPart)
	if err != nil {
		return nil, fmt.Errorf("bad payload %q: %v", dataPart, err)
	}

	var frame *Frame
	if len(idPart) > 3 {
		frame = NewExtendedFrame(uint32(id), data)
	} else {
		frame = NewFrame(uint32(id), data)
	}
	frame.Timestamp = ts
	return frame, nil
}
