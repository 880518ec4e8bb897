package cantemp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Frame is one observed CAN frame. Data holds at most 8 payload bytes;
// bytes beyond len(Data) do not exist on the wire and are never read.
type Frame struct {
	Identifier uint32
	Extended   bool
	Data       []byte
	Timestamp  time.Time
}

// NewFrame creates a new Frame and copies the data slice
func NewFrame(identifier uint32, data []byte) *Frame {
	d := make([]byte, len(data))
	copy(d, data)
	return &Frame{
		Identifier: identifier,
		Data:       d,
		Timestamp:  time.Now(),
	}
}

// NewExtendedFrame creates a new 29-bit Frame and copies the data slice
func NewExtendedFrame(identifier uint32, data []byte) *Frame {
	frame := NewFrame(identifier, data)
	frame.Extended = true
	return frame
}

// Length returns the number of payload bytes (DLC)
func (f *Frame) Length() int {
	return len(f.Data)
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f *Frame) String() string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("0x%03X", f.Identifier) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	out.WriteString(fmt.Sprintf("%-23s", f.hexView()))
	out.WriteString(" || ")
	out.WriteString(fmt.Sprintf("%-72s", f.binView()))
	return out.String()
}

func (f *Frame) ColorString() string {
	var out strings.Builder
	out.WriteString(green("0x%03X", f.Identifier) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	out.WriteString(yellow("%-23s", f.hexView()))
	out.WriteString(" || ")
	out.WriteString(red("%-72s", f.binView()))
	return out.String()
}

func (f *Frame) hexView() string {
	var view strings.Builder
	for i, b := range f.Data {
		view.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			view.WriteString(" ")
		}
	}
	return view.String()
}

func (f *Frame) binView() string {
	var view strings.Builder
	for i, b := range f.Data {
		view.WriteString(fmt.Sprintf("%08b", b))
		if i != len(f.Data)-1 {
			view.WriteString(" ")
		}
	}
	return view.String()
}
