package layout

import "strings"

// Target describes the ABI target triple and its pointer properties.
type Target struct {
	Triple   string // e.g. "x86_64-linux-gnu"
	PtrSize  int    // bytes
	PtrAlign int    // bytes
	// JmpBufSize and JmpBufAlign describe the C library jmp_buf.
	JmpBufSize  int
	JmpBufAlign int
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:      "x86_64-linux-gnu",
		PtrSize:     8,
		PtrAlign:    8,
		JmpBufSize:  200,
		JmpBufAlign: 16,
	}
}

func AArch64LinuxGNU() Target {
	return Target{
		Triple:      "aarch64-linux-gnu",
		PtrSize:     8,
		PtrAlign:    8,
		JmpBufSize:  312,
		JmpBufAlign: 16,
	}
}

// TargetByName accepts a triple with or without the vendor component.
func TargetByName(name string) (Target, bool) {
	name = strings.Replace(strings.TrimSpace(name), "-unknown-", "-", 1)
	switch name {
	case "", "x86_64-linux-gnu":
		return X86_64LinuxGNU(), true
	case "aarch64-linux-gnu":
		return AArch64LinuxGNU(), true
	}
	return Target{}, false
}
