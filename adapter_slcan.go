package cantemp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"go.bug.st/serial"
)

// SLCan reads frames from a Lawicel/Canable style adapter speaking the
// SLCAN ASCII protocol over a serial port.
type SLCan struct {
	*BaseAdapter
	port   serial.Port
	closed bool
}

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "SLCan",
		Description:        "Lawicel CANUSB / Canable SLCan adapter",
		RequiresSerialPort: true,
		New:                NewSLCan,
	}); err != nil {
		panic(err)
	}
}

func NewSLCan(cfg *AdapterConfig) (Adapter, error) {
	return &SLCan{
		BaseAdapter: NewBaseAdapter("SLCan", cfg),
	}, nil
}

func (sl *SLCan) Open(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: sl.cfg.PortBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(sl.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open com port %q : %v", sl.cfg.Port, err)
	}
	p.SetReadTimeout(4 * time.Millisecond)
	sl.port = p

	rate, err := canRateCommand(sl.cfg.CANRate)
	if err != nil {
		p.Close()
		return err
	}

	err = retry.Do(func() error {
		var cmds = []string{
			"C", "", "", // Close channel, empty buffer
			"V",  // Version reply tells us the adapter is alive
			"Z0", // Timestamps off
			rate, // CAN bit-rate
			"O",  // Open the CAN channel
		}
		for _, c := range cmds {
			if _, err := p.Write([]byte(c + "\r")); err != nil {
				return err
			}
			time.Sleep(10 * time.Millisecond)
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("Retry #%d: %v", n, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		p.Close()
		return err
	}

	p.ResetOutputBuffer()
	p.ResetInputBuffer()

	go sl.recvManager(ctx)
	go sl.statusManager(ctx)

	return nil
}

func canRateCommand(rate float64) (string, error) {
	switch rate {
	case 10:
		return "S0", nil
	case 20:
		return "S1", nil
	case 50:
		return "S2", nil
	case 100:
		return "S3", nil
	case 125:
		return "S4", nil
	case 250:
		return "S5", nil
	case 500:
		return "S6", nil
	case 800:
		return "S7", nil
	case 1000:
		return "S8", nil
	default:
		return "", fmt.Errorf("unknown rate: %f", rate)
	}
}

func (sl *SLCan) Close() error {
	sl.BaseAdapter.Close()
	sl.closed = true
	if sl.port == nil {
		return nil
	}
	time.Sleep(10 * time.Millisecond)
	sl.port.Write([]byte("C\r"))
	sl.port.ResetInputBuffer()
	sl.port.ResetOutputBuffer()
	if err := sl.port.Close(); err != nil {
		return fmt.Errorf("failed to close com port: %w", err)
	}
	sl.port = nil
	return nil
}

// statusManager polls the adapter status flags every 5 seconds.
func (sl *SLCan) statusManager(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sl.closeChan:
			return
		case <-ticker.C:
			if _, err := sl.port.Write([]byte{'F', '\r'}); err != nil {
				sl.SetError(Unrecoverable(fmt.Errorf("failed to write to com port: %w", err)))
				return
			}
		}
	}
}

func (sl *SLCan) recvManager(ctx context.Context) {
	buf := make([]byte, 0, 1024)
	readBuf := make([]byte, 32)
	for ctx.Err() == nil {
		n, err := sl.port.Read(readBuf)
		if err != nil {
			if !sl.closed {
				sl.SetError(Unrecoverable(fmt.Errorf("failed to read com port: %w", err)))
			}
			return
		}
		select {
		case <-sl.closeChan:
			return
		default:
			if n == 0 {
				continue
			}
			buf = sl.parse(buf, readBuf[:n])
		}
	}
}

// parse processes the read data and returns any remaining partial data.
func (sl *SLCan) parse(buf, readBuf []byte) []byte {
	for _, b := range readBuf {
		if b == 0x07 { // BELL, command error
			sl.cfg.OnMessage("command error")
			continue
		}
		if b != '\r' {
			buf = append(buf, b)
			continue
		}
		if len(buf) == 0 {
			continue
		}
		if sl.cfg.Debug {
			log.Printf("<< %s", string(buf))
		}
		switch buf[0] {
		case 't':
			f, err := decodeSLCanFrame(buf)
			if err != nil {
				sl.cfg.OnMessage(fmt.Sprintf("failed to decode frame: %v", err))
				buf = buf[:0]
				continue
			}
			sl.deliver(f)
		case 'T':
			f, err := decodeSLCanFrame29bit(buf)
			if err != nil {
				sl.cfg.OnMessage(fmt.Sprintf("failed to decode frame: %v", err))
				buf = buf[:0]
				continue
			}
			sl.deliver(f)
		case 'F':
			if err := decodeStatus(buf); err != nil {
				sl.cfg.OnMessage(fmt.Sprintf("CAN status error: %v", err))
				sl.SetError(err)
			}
		case 'z': // last command ok
		case 'V':
			sl.cfg.OnMessage("H/W version " + string(buf))
		default:
			sl.cfg.OnMessage("Unknown>> " + string(buf))
		}
		buf = buf[:0]
	}
	return buf
}

// decodeSLCanFrame decodes a standard 11-bit frame:
// 't' + 3 hex digit identifier + len nibble + data as hex
func decodeSLCanFrame(buff []byte) (*Frame, error) {
	if len(buff) < 5 {
		return nil, fmt.Errorf("frame too short: %q", buff)
	}
	id, err := strconv.ParseUint(string(buff[1:4]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %v", err)
	}
	dataLen, err := strconv.ParseUint(string(buff[4]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data length: %v", err)
	}
	if dataLen > 8 {
		return nil, fmt.Errorf("invalid data length: %d", dataLen)
	}
	if len(buff) < int(5+dataLen*2) {
		return nil, fmt.Errorf("truncated frame body: %q", buff)
	}
	data, err := hex.DecodeString(string(buff[5 : 5+(dataLen*2)]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame body: %v", err)
	}
	return NewFrame(uint32(id), data), nil
}

// decodeSLCanFrame29bit decodes an extended frame:
// 'T' + 8 hex digit identifier + len nibble + data as hex
func decodeSLCanFrame29bit(buff []byte) (*Frame, error) {
	if len(buff) < 10 {
		return nil, fmt.Errorf("frame too short: %q", buff)
	}
	id, err := strconv.ParseUint(string(buff[1:9]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %v", err)
	}
	dataLen, err := strconv.ParseUint(string(buff[9]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data length: %v", err)
	}
	if dataLen > 8 {
		return nil, fmt.Errorf("invalid data length: %d", dataLen)
	}
	if len(buff) < int(10+dataLen*2) {
		return nil, fmt.Errorf("truncated frame body: %q", buff)
	}
	data, err := hex.DecodeString(string(buff[10 : 10+(dataLen*2)]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame body: %v", err)
	}
	return NewExtendedFrame(uint32(id), data), nil
}

/*
Status flags as reported by the 'F' command:
Bit 0 CAN receive FIFO queue full
Bit 1 CAN transmit FIFO queue full
Bit 2 Error warning (EI), see SJA1000 datasheet
Bit 3 Data Overrun (DOI), see SJA1000 datasheet
Bit 4 Not used.
Bit 5 Error Passive (EPI), see SJA1000 datasheet
Bit 6 Arbitration Lost (ALI), see SJA1000 datasheet
Bit 7 Bus Error (BEI), see SJA1000 datasheet
*/
func decodeStatus(b []byte) error {
	if len(b) < 3 {
		return nil
	}
	flags, err := strconv.ParseUint(string(b[1:3]), 16, 8)
	if err != nil {
		return nil
	}
	bs := int(flags)
	switch true {
	case checkBitSet(bs, 1):
		return errors.New("CAN receive FIFO queue full")
	case checkBitSet(bs, 2):
		return errors.New("CAN transmit FIFO queue full")
	case checkBitSet(bs, 3):
		return errors.New("error warning (EI), see SJA1000 datasheet")
	case checkBitSet(bs, 4):
		return errors.New("data overrun (DOI), see SJA1000 datasheet")
	case checkBitSet(bs, 6):
		return errors.New("error passive (EPI), see SJA1000 datasheet")
	case checkBitSet(bs, 7):
		return errors.New("arbitration lost (ALI), see SJA1000 datasheet")
	case checkBitSet(bs, 8):
		return errors.New("bus error (BEI), see SJA1000 datasheet")
	}
	return nil
}

func checkBitSet(n, k int) bool {
	return n&(1<<(k-1)) != 0
}
