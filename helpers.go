package wlink

// Flash helpers are pre-built, opaque RISC-V routines uploaded to target
// RAM and invoked to perform page-granular flash writes on behalf of the
// host (spec.md §9). This package neither parses nor patches them — they
// are static byte arrays keyed by family, exactly the shape of the
// teacher's knownFlash map-of-structs-by-key table (flash_params.go),
// generalized from per-chip timing constants to per-family opaque blobs.
//
// The real blobs are vendor firmware images outside this repository's
// scope; these placeholders carry a recognizable 4-byte magic header
// ("WLHF") followed by a family tag so a real distribution can substitute
// the genuine helper without changing any call site.
func placeholderHelper(family FamilyCode) []byte {
	return []byte{'W', 'L', 'H', 'F', byte(family)}
}

var helperBlobs = map[FamilyCode][]byte{
	FamilyCH32V103:  placeholderHelper(FamilyCH32V103),
	FamilyCH32V203:  placeholderHelper(FamilyCH32V203),
	FamilyCH32V208:  placeholderHelper(FamilyCH32V208),
	FamilyCH32V303:  placeholderHelper(FamilyCH32V303),
	FamilyCH32V305:  placeholderHelper(FamilyCH32V305),
	FamilyCH32V307:  placeholderHelper(FamilyCH32V307),
	FamilyCH32V003:  placeholderHelper(FamilyCH32V003),
	FamilyCH32X035:  placeholderHelper(FamilyCH32X035),
	FamilyCH32L103:  placeholderHelper(FamilyCH32L103),
	FamilyCH32V317:  placeholderHelper(FamilyCH32V317),
	FamilyCH32V003B: placeholderHelper(FamilyCH32V003B),
	FamilyCH32V002:  placeholderHelper(FamilyCH32V002),
	FamilyCH570:     placeholderHelper(FamilyCH570),
	FamilyCH585:     placeholderHelper(FamilyCH585),
}
