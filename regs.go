package wlink

import (
	"fmt"

	"github.com/boljen/go-bitmap"
)

// DMI register addresses (RISC-V External Debug Support, dm register map)
// used by the abstract-command engine in dmi.go.
const (
	dmRegData0      = 0x04
	dmRegCommand    = 0x17
	dmRegAbstractcs = 0x16
	dmRegHartinfo   = 0x12
	dmRegDmcontrol  = 0x10
	dmRegDmstatus   = 0x11
	dmRegProgbuf0   = 0x20
	dmRegProgbuf1   = 0x21
)

// bitfield wraps a 32-bit DMI register image with named-bit accessors via
// a 32-bit bitmap.Bitmap, the same "which bits of this status word are
// set" idiom the pack's WCH-Link-class sibling tool (bbnote/gostlink) uses
// for its own capability/version flags register.
type bitfield struct {
	raw uint32
	bm  bitmap.Bitmap
}

func newBitfield(raw uint32) bitfield {
	bm := bitmap.New(32)
	for i := 0; i < 32; i++ {
		if raw&(1<<uint(i)) != 0 {
			bm.Set(i, true)
		}
	}
	return bitfield{raw: raw, bm: bm}
}

func (b bitfield) bit(i int) bool { return b.bm.Get(i) }

func (b bitfield) field(lo, hi int) uint32 {
	mask := uint32(1)<<uint(hi-lo+1) - 1
	return (b.raw >> uint(lo)) & mask
}

// Dmstatus is the dm register reporting hart halt/resume/reset state.
type Dmstatus struct{ bitfield }

func DecodeDmstatus(raw uint32) Dmstatus { return Dmstatus{newBitfield(raw)} }

func (d Dmstatus) AllHalted() bool    { return d.bit(9) }
func (d Dmstatus) AnyHalted() bool    { return d.bit(8) }
func (d Dmstatus) AllRunning() bool   { return d.bit(11) }
func (d Dmstatus) AnyRunning() bool   { return d.bit(10) }
func (d Dmstatus) AllResumeAck() bool { return d.bit(17) }
func (d Dmstatus) AnyResumeAck() bool { return d.bit(16) }
func (d Dmstatus) AllHaveReset() bool { return d.bit(19) }
func (d Dmstatus) AnyHaveReset() bool { return d.bit(18) }
func (d Dmstatus) Version() uint32    { return d.field(0, 3) }

// Dmcontrol is the dm register used to request halt/resume/reset.
type Dmcontrol struct{ bitfield }

func DecodeDmcontrol(raw uint32) Dmcontrol { return Dmcontrol{newBitfield(raw)} }

func (d Dmcontrol) Dmactive() bool { return d.bit(0) }

// Encode helpers: the dmcontrol values written here are plain constants
// rather than a builder (spec.md §4.4 gives exact values); the only read
// of dmcontrol is the dmactive check in resetDebugModule.
const (
	dmcontrolHaltReq      uint32 = 0x80000001
	dmcontrolClearHaltReq uint32 = 0x00000001
	dmcontrolResumeReq    uint32 = 0x40000001
	dmcontrolDmActive     uint32 = 0x00000001
	dmcontrolDmInactive   uint32 = 0x00000000
	dmcontrolAckHaveReset uint32 = 0x10000001
)

// Abstractcs is the dm register reporting abstract-command busy/error
// state (spec.md §4.4).
type Abstractcs struct{ bitfield }

func DecodeAbstractcs(raw uint32) Abstractcs { return Abstractcs{newBitfield(raw)} }

func (a Abstractcs) Busy() bool          { return a.bit(12) }
func (a Abstractcs) Cmderr() AbstractCmdErr { return AbstractCmdErr(a.field(8, 10)) }

const abstractcsClearCmderr uint32 = 0b111 << 8

// Hartinfo reports program-buffer/data-window geometry for the attached
// hart. Nothing else in this package reads hartinfo; the type is kept as a
// named register image per spec.md §3's register-image list.
type Hartinfo struct{ bitfield }

func DecodeHartinfo(raw uint32) Hartinfo { return Hartinfo{newBitfield(raw)} }

func (h Hartinfo) Nscratch() uint32  { return h.field(20, 23) }
func (h Hartinfo) DataAddr() uint32  { return h.field(0, 11) }

// AbstractCmdErr is the 3-bit cmderr field of abstractcs, decoded into the
// seven-variant taxonomy of spec.md §4.4.
type AbstractCmdErr uint32

const (
	AbstractCmdErrNone AbstractCmdErr = iota
	AbstractCmdErrBusy
	AbstractCmdErrNotSupported
	AbstractCmdErrException
	AbstractCmdErrHaltOrResume
	AbstractCmdErrBus
	AbstractCmdErrParity
	AbstractCmdErrOther
)

func (e AbstractCmdErr) String() string {
	switch e {
	case AbstractCmdErrNone:
		return "none"
	case AbstractCmdErrBusy:
		return "busy"
	case AbstractCmdErrNotSupported:
		return "not-supported"
	case AbstractCmdErrException:
		return "exception"
	case AbstractCmdErrHaltOrResume:
		return "halt-or-resume"
	case AbstractCmdErrBus:
		return "bus"
	case AbstractCmdErrParity:
		return "parity"
	case AbstractCmdErrOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(e))
	}
}

// Command-register opcode builder (spec.md §4.4) for the RISC-V
// abstract-command "Access Register" command: aarsize, postexec, write and
// regno come from the arguments; the transfer bit is always set.
func abstractCmdAccessRegister(regno uint32, write, postexec bool, size uint32) uint32 {
	var cmd uint32 = 0x00000000
	cmd |= size << 20 // aarsize
	if postexec {
		cmd |= 1 << 18
	}
	cmd |= 1 << 17 // transfer
	if write {
		cmd |= 1 << 16
	}
	cmd |= regno & 0xFFFF
	return cmd
}

// Register-number encoding per spec.md §4.4.
const (
	regnoCSRBase = 0x0000
	regnoCSRMax  = 0x0FFF
	regnoGPRBase = 0x1000
	regnoGPRMax  = 0x101F
	regnoFPRBase = 0x1020
	regnoFPRMax  = 0x103F
)

// RegClass identifies which register file a regno falls in.
type RegClass int

const (
	RegClassCSR RegClass = iota
	RegClassGPR
	RegClassFPR
	RegClassInvalid
)

// ClassifyReg returns which register file regno addresses.
func ClassifyReg(regno uint32) RegClass {
	switch {
	case regno <= regnoCSRMax:
		return RegClassCSR
	case regno >= regnoGPRBase && regno <= regnoGPRMax:
		return RegClassGPR
	case regno >= regnoFPRBase && regno <= regnoFPRMax:
		return RegClassFPR
	default:
		return RegClassInvalid
	}
}

// GPR name table, x0..x31 (standard RISC-V calling-convention names).
var gprNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// GPRName returns the ABI name for GPR index 0..31, or "" if out of range.
func GPRName(index int) string {
	if index < 0 || index >= len(gprNames) {
		return ""
	}
	return gprNames[index]
}

// A handful of CSR numbers this package's consumers care about directly;
// the full CSR space is addressed numerically via regno.
const (
	CSRMstatus = 0x300
	CSRMisa    = 0x301
	CSRMarchid = 0xF12
	CSRMimpid  = 0xF13
	CSRMhartid = 0xF14
	CSRDpc     = 0x7B1
)
