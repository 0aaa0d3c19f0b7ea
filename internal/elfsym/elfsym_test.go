package elfsym_test

import (
	"debug/elf"
	"testing"

	"stackbound/internal/arch"
	"stackbound/internal/elfsym"
)

func TestDetectArch(t *testing.T) {
	cases := []struct {
		machine elf.Machine
		want    arch.Arch
	}{
		{elf.EM_386, arch.X86},
		{elf.EM_X86_64, arch.X86_64},
		{elf.EM_ARM, arch.ARM},
		{elf.EM_AARCH64, arch.AArch64},
	}
	for _, c := range cases {
		f := &elf.File{FileHeader: elf.FileHeader{Machine: c.machine}}
		got, err := elfsym.DetectArch(f)
		if err != nil {
			t.Fatalf("DetectArch(%s): %v", c.machine, err)
		}
		if got != c.want {
			t.Errorf("DetectArch(%s) = %s, want %s", c.machine, got, c.want)
		}
	}
}

func TestDetectArchUnsupported(t *testing.T) {
	f := &elf.File{FileHeader: elf.FileHeader{Machine: elf.EM_MIPS}}
	if _, err := elfsym.DetectArch(f); err == nil {
		t.Fatal("expected an error for an unsupported machine type")
	}
}

func TestTextSectionsFiltersByFlags(t *testing.T) {
	f := &elf.File{
		Sections: []*elf.Section{
			{SectionHeader: elf.SectionHeader{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR}},
			{SectionHeader: elf.SectionHeader{Name: ".rodata", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC}},
			{SectionHeader: elf.SectionHeader{Name: ".bss", Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR}},
		},
	}
	got := elfsym.TextSections(f)
	if len(got) != 1 || got[0].Name != ".text" {
		t.Fatalf("TextSections = %+v", got)
	}
}
