package cantemp

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Adapter is a frame source. Reception is one-way: the monitor never
// writes application frames onto the bus, so there is no send side.
type Adapter interface {
	Name() string
	Open(context.Context) error
	Close() error
	Recv() <-chan *Frame
	Err() <-chan error
}

type AdapterInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	New                func(*AdapterConfig) (Adapter, error)
}

func (a *AdapterInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v", a.Name, a.Description, a.RequiresSerialPort)
}

type AdapterConfig struct {
	Debug        bool
	Port         string // serial port, or source file for the replay adapter
	PortBaudrate int
	CANRate      float64
	OnMessage    func(string)
}

var adapterMap = make(map[string]*AdapterInfo)

func NewAdapter(adapterName string, cfg *AdapterConfig) (Adapter, error) {
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				fmt.Printf("%s#%d %v\n", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
	for name, adapter := range adapterMap {
		if strings.EqualFold(name, adapterName) {
			return adapter.New(cfg)
		}
	}
	return nil, fmt.Errorf("unknown adapter %q", adapterName)
}

func RegisterAdapter(adapter *AdapterInfo) error {
	if _, found := adapterMap[adapter.Name]; !found {
		adapterMap[adapter.Name] = adapter
		return nil
	}
	return fmt.Errorf("adapter %s already registered", adapter.Name)
}

func ListAdapterNames() []string {
	var out []string
	for name := range adapterMap {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func ListAdapters() []AdapterInfo {
	var out []AdapterInfo
	for _, adapter := range adapterMap {
		out = append(out, *adapter)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}
