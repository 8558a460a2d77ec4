package wlink

import "testing"

func TestDecodeDmiResponse(t *testing.T) {
	payload := []byte{0x11, 0xDE, 0xAD, 0xBE, 0xEF, byte(DmiStatusSuccess)}
	r, err := decodeDmiResponse(payload)
	if err != nil {
		t.Fatalf("decodeDmiResponse: %v", err)
	}
	if r.Addr != 0x11 || r.Data != 0xDEADBEEF || r.Status != DmiStatusSuccess {
		t.Fatalf("got %+v", r)
	}
}

func TestDecodeDmiResponseWrongLength(t *testing.T) {
	if _, err := decodeDmiResponse([]byte{0x01}); !IsKind(err, KindInvalidPayloadLength) {
		t.Fatalf("expected InvalidPayloadLength, got %v", err)
	}
}

func TestDmiIsNotAttachedSentinel(t *testing.T) {
	r := dmiResult{Addr: notAttachedAddr, Data: 0xFFFFFFFF, Status: DmiStatusBusy}
	if !dmiIsNotAttached(r) {
		t.Fatal("expected sentinel to be recognized")
	}
	r.Addr = 0x01
	if dmiIsNotAttached(r) {
		t.Fatal("did not expect sentinel with a different addr")
	}
}

func TestAbstractCmdErrString(t *testing.T) {
	cases := map[AbstractCmdErr]string{
		AbstractCmdErrNone:        "none",
		AbstractCmdErrBusy:        "busy",
		AbstractCmdErrException:   "exception",
		AbstractCmdErrHaltOrResume: "halt-or-resume",
		AbstractCmdErrOther:       "other",
	}
	for err, want := range cases {
		if got := err.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", err, got, want)
		}
	}
}

func TestRegAccessCommandEncoding(t *testing.T) {
	if got, want := regAccessCommand(CSRMarchid, false), uint32(0x00220000|CSRMarchid); got != want {
		t.Fatalf("read regAccessCommand = 0x%08X, want 0x%08X", got, want)
	}
	if got, want := regAccessCommand(CSRMarchid, true), uint32(0x00230000|CSRMarchid); got != want {
		t.Fatalf("write regAccessCommand = 0x%08X, want 0x%08X", got, want)
	}
}

func TestClassifyReg(t *testing.T) {
	cases := []struct {
		regno uint32
		want  RegClass
	}{
		{0x000, RegClassCSR},
		{0x0FFF, RegClassCSR},
		{0x1000, RegClassGPR},
		{0x101F, RegClassGPR},
		{0x1020, RegClassFPR},
		{0x103F, RegClassFPR},
		{0x1040, RegClassInvalid},
	}
	for _, c := range cases {
		if got := ClassifyReg(c.regno); got != c.want {
			t.Errorf("ClassifyReg(0x%04X) = %v, want %v", c.regno, got, c.want)
		}
	}
}

func TestGPRName(t *testing.T) {
	if got := GPRName(2); got != "sp" {
		t.Fatalf("GPRName(2) = %q, want sp", got)
	}
	if got := GPRName(-1); got != "" {
		t.Fatalf("GPRName(-1) = %q, want empty", got)
	}
	if got := GPRName(32); got != "" {
		t.Fatalf("GPRName(32) = %q, want empty", got)
	}
}
