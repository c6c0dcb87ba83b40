package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/chazu/scmvm/scm"
	"github.com/chazu/scmvm/vm"
)

// dumpSummary writes the container layout as YAML.
func dumpSummary(w io.Writer, f *scm.File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f.Summary()); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return enc.Close()
}

// disassemble writes a listing of the main script using the names of the
// built-in command set. A decode error ends the listing early.
func disassemble(w io.Writer, f *scm.File) error {
	insts, err := f.Disassemble(f.CodeSectionOffset(), f.MainSize(), vm.NewMainModule().Lookup)
	if _, werr := io.WriteString(w, scm.Listing(insts)); werr != nil {
		return werr
	}
	if err != nil {
		return fmt.Errorf("disassembly stopped: %w", err)
	}
	return nil
}
