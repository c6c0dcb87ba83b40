// Package vm implements the mission script virtual machine.
//
// This package contains:
//   - Tagged operand representation and arena-backed variable references
//   - The opcode registry (Module)
//   - Script threads and the cooperative fetch-decode-dispatch engine
//   - The main opcode function library
//   - World hooks consumed by opcodes
//   - Snapshot encoding of machine state
package vm
