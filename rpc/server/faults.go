package server

import (
	"fmt"
	"github.com/BurntSushi/toml"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"strings"
	"sync"
)

// A fault profile makes the server reject selected requests with a chosen
// error, independent of the display state. Example:
//
//	[[fault]]
//	request = "MapWindow"
//	error = "BadAccess"
//	nth = 2          # only the second MapWindow, 0 rejects every one
//	resource = 0x400001
type faultFile struct {
	Faults []faultEntry `toml:"fault"`
}

type faultEntry struct {
	Request  string `toml:"request"`
	Error    string `toml:"error"`
	Nth      int    `toml:"nth"`
	Resource uint32 `toml:"resource"`
}

// Fault is one resolved entry of a fault profile
type Fault struct {
	Opcode    common.MajorCode
	ErrorCode common.ErrorCode
	Nth       int
	Resource  uint32
}

// FaultProfile decides which requests are rejected by injected errors
type FaultProfile struct {
	mu     sync.Mutex
	faults []Fault
	seen   map[common.MajorCode]int
}

// LoadFaultProfile reads a fault profile from a TOML file
func LoadFaultProfile(path string) (*FaultProfile, error) {
	var raw faultFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("load fault profile: %w", err)
	}
	return newFaultProfile(raw)
}

// ParseFaultProfile reads a fault profile from TOML text
func ParseFaultProfile(data string) (*FaultProfile, error) {
	var raw faultFile
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fault profile: %w", err)
	}
	return newFaultProfile(raw)
}

func newFaultProfile(raw faultFile) (*FaultProfile, error) {
	p := &FaultProfile{seen: make(map[common.MajorCode]int)}
	for i, entry := range raw.Faults {
		opcode, ok := lookupOpcode(entry.Request)
		if !ok {
			return nil, fmt.Errorf("fault %d: unknown request %q", i, entry.Request)
		}
		code, ok := lookupErrorCode(entry.Error)
		if !ok || code == common.ErrSuccess {
			return nil, fmt.Errorf("fault %d: unknown error %q", i, entry.Error)
		}
		if entry.Nth < 0 {
			return nil, fmt.Errorf("fault %d: nth must not be negative", i)
		}
		p.faults = append(p.faults, Fault{Opcode: opcode, ErrorCode: code, Nth: entry.Nth, Resource: entry.Resource})
	}
	return p, nil
}

// Faults returns the resolved entries of the profile
func (p *FaultProfile) Faults() []Fault {
	return append([]Fault(nil), p.faults...)
}

// match counts the request and returns the fault that rejects it, if any.
// A nil profile never matches.
func (p *FaultProfile) match(opcode common.MajorCode) (Fault, bool) {
	if p == nil || len(p.faults) == 0 {
		return Fault{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen[opcode]++
	n := p.seen[opcode]
	for _, f := range p.faults {
		if f.Opcode == opcode && (f.Nth == 0 || f.Nth == n) {
			return f, true
		}
	}
	return Fault{}, false
}

// lookupOpcode resolves a request name or a decimal opcode
func lookupOpcode(name string) (common.MajorCode, bool) {
	for i := 1; i < 256; i++ {
		c := common.MajorCode(i)
		if c.Known() && strings.EqualFold(c.String(), name) {
			return c, true
		}
	}
	var n uint8
	if _, err := fmt.Sscanf(name, "%d", &n); err == nil && n != 0 {
		return common.MajorCode(n), true
	}
	return 0, false
}

// lookupErrorCode resolves an error name, with or without the Bad prefix, or a decimal code
func lookupErrorCode(name string) (common.ErrorCode, bool) {
	for i := 0; i < 256; i++ {
		c := common.ErrorCode(i)
		if !c.Known() {
			break
		}
		if strings.EqualFold(c.String(), name) || strings.EqualFold(c.String(), "Bad"+name) {
			return c, true
		}
	}
	var n uint8
	if _, err := fmt.Sscanf(name, "%d", &n); err == nil {
		return common.ErrorCode(n), true
	}
	return 0, false
}
