package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wlink-rv/wlink"
	"github.com/wlink-rv/wlink/internal/usbtransport"
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	wlink-example <command> [arguments]

Commands:
	probes	 list attached probes
	info	 attach and dump chip info
	write	 write flash memory
	read	 read flash memory
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	switch cmd := flag.Arg(0); cmd {
	case "probes":
		probesCommand(flag.Args()[1:])
	case "info":
		infoCommand(flag.Args()[1:])
	case "write":
		writeCommand(flag.Args()[1:])
	case "read":
		readCommand(flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

func probesCommand(args []string) {
	fs := flag.NewFlagSet("probes", flag.ExitOnError)
	fs.Parse(args)

	t := usbtransport.New()
	defer t.Close()

	handles, err := wlink.ListProbes(t)
	if err != nil {
		fatalf("%v", err)
	}
	for _, h := range handles {
		fmt.Printf("%s #%d  bus=%d addr=%d\n", h.Mode, h.Index, h.Bus, h.Address)
	}
}

func infoCommand(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	var n int
	fs.IntVar(&n, "n", 0, "probe index")
	fs.Parse(args)

	p, s := attachNth(n)
	defer s.Detach()
	defer p.Close()

	chip, err := s.DumpInfo()
	if err != nil {
		fatalf("dump info failed: %v", err)
	}
	fmt.Printf("family=%s chip_id=0x%08X core=%s\n", chip.Family, chip.ChipID, chip.CoreArch)
	if chip.ESIG != nil {
		fmt.Printf("flash_size_kb=%d uid=%s\n", chip.ESIG.FlashSizeKB, chip.ESIG.UIDString())
	}
}

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		filename string
		n        int
		addr     uint
		erase    bool
	)
	fs.StringVar(&filename, "f", "", "input file")
	fs.IntVar(&n, "n", 0, "probe index")
	fs.UintVar(&addr, "a", 0x08000000, "flash address")
	fs.BoolVar(&erase, "e", true, "erase before write")
	fs.Parse(args)

	if filename == "" {
		fatalUsage("input file is required")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		fatalf("failed to read file: %v", err)
	}

	p, s := attachNth(n)
	defer s.Detach()
	defer p.Close()

	if erase {
		if err := s.EraseFlash(); err != nil {
			fatalf("erase failed: %v", err)
		}
	}
	if err := s.WriteFlash(data, uint32(addr), func(written, total int) {
		fmt.Fprintf(os.Stderr, "\r%d/%d bytes", written, total)
	}); err != nil {
		fatalf("\nwrite flash failed: %v", err)
	}
	fmt.Fprintln(os.Stderr)
}

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		filename string
		n        int
		addr     uint
		length   uint
	)
	fs.StringVar(&filename, "f", "", "output file")
	fs.IntVar(&n, "n", 0, "probe index")
	fs.UintVar(&addr, "a", 0x08000000, "flash address")
	fs.UintVar(&length, "l", 0, "read length in bytes")
	fs.Parse(args)

	if filename == "" || length == 0 {
		fatalUsage("output file and length are required")
	}

	p, s := attachNth(n)
	defer s.Detach()
	defer p.Close()

	data, err := s.ReadMemory(uint32(addr), int(length))
	if err != nil {
		fatalf("read memory failed: %v", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		fatalf("failed to write output file: %v", err)
	}
}

func attachNth(n int) (*wlink.Probe, *wlink.Session) {
	t := usbtransport.New()

	p, err := wlink.OpenNth(t, n)
	if err != nil {
		fatalf("open probe #%d: %v", n, err)
	}

	s, err := p.Attach(0, wlink.SpeedMedium)
	if err != nil {
		p.Close()
		fatalf("attach failed: %v", err)
	}
	return p, s
}
