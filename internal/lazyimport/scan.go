package lazyimport

import (
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/object"
	"github.com/skinklang/skink/internal/runtime"
)

// Declaration is one import recovered from a guarded region: the module
// path and the names the import statement binds.
type Declaration struct {
	Module string
	Names  []string
}

// ScanChunk decodes a whole chunk and returns the declarations of every
// guarded import region in it, in code order. A region starts after the
// instruction run that opens a lazy_import block and ends with the run
// that contains the block's error handler. The chunk's own format decides
// which opening shape to look for; a format this build does not know is
// refused outright.
func ScanChunk(chunk *bytecode.Chunk) ([]Declaration, error) {
	if !chunk.Format.Known() {
		return nil, &runtime.UnsupportedFormatError{Format: chunk.Format}
	}
	instrs, err := bytecode.Decode(chunk)
	if err != nil {
		return nil, &runtime.InternalError{Msg: "guarded import scan of " + chunk.Name + ": " + err.Error()}
	}

	var regions [][]bytecode.Instr
	var buffer [][]bytecode.Instr
	collecting := false

	for _, block := range splitBlocks(instrs) {
		if isGuardOpen(chunk, block) {
			// A nested or repeated opener restarts the region.
			buffer = nil
			collecting = true
			continue
		}
		if !collecting {
			continue
		}
		if closesGuard(block) {
			for _, b := range buffer {
				regions = append(regions, b)
			}
			regions = append(regions, block)
			buffer = nil
			collecting = false
			continue
		}
		buffer = append(buffer, block)
	}

	var decls []Declaration
	for _, block := range regions {
		decls = append(decls, extractImports(chunk, block)...)
	}
	return decls, nil
}

// splitBlocks partitions instructions into per-line runs.
func splitBlocks(instrs []bytecode.Instr) [][]bytecode.Instr {
	var blocks [][]bytecode.Instr
	var run []bytecode.Instr
	for _, ins := range instrs {
		if ins.StartsLine && len(run) > 0 {
			blocks = append(blocks, run)
			run = nil
		}
		run = append(run, ins)
	}
	if len(run) > 0 {
		blocks = append(blocks, run)
	}
	return blocks
}

// isGuardOpen reports whether a run is the compiled shape of entering a
// `with lazy_import()` block. The shape is fixed per bytecode format, down
// to the loaded name.
func isGuardOpen(chunk *bytecode.Chunk, block []bytecode.Instr) bool {
	switch chunk.Format {
	case bytecode.FormatLegacy:
		if len(block) != 4 {
			return false
		}
		return block[0].Op == bytecode.OP_LOAD_NAME &&
			constString(chunk, block[0]) == GuardName &&
			block[1].Op == bytecode.OP_CALL_FUNCTION &&
			block[2].Op == bytecode.OP_SETUP_WITH &&
			block[3].Op == bytecode.OP_POP
	case bytecode.FormatCurrent:
		if len(block) != 6 {
			return false
		}
		return block[0].Op == bytecode.OP_PUSH_NULL &&
			block[1].Op == bytecode.OP_LOAD_NAME &&
			constString(chunk, block[1]) == GuardName &&
			block[2].Op == bytecode.OP_PRECALL &&
			block[3].Op == bytecode.OP_CALL &&
			block[4].Op == bytecode.OP_BEFORE_WITH &&
			block[5].Op == bytecode.OP_POP
	}
	return false
}

// closesGuard reports whether a run contains a with handler entry, which
// only the closing run of a with block does.
func closesGuard(block []bytecode.Instr) bool {
	for _, ins := range block {
		if ins.Op == bytecode.OP_WITH_EXCEPT_START {
			return true
		}
	}
	return false
}

// extractImports collects the declarations of a single run. Every compiled
// import pushes its name list immediately before naming the module, so the
// pairs are found by adjacency.
func extractImports(chunk *bytecode.Chunk, block []bytecode.Instr) []Declaration {
	var decls []Declaration
	for i := 0; i+1 < len(block); i++ {
		if block[i].Op != bytecode.OP_CONST || block[i+1].Op != bytecode.OP_IMPORT_NAME {
			continue
		}
		names, ok := constNames(chunk, block[i])
		if !ok {
			continue
		}
		path := constString(chunk, block[i+1])
		if path == "" {
			continue
		}
		decls = append(decls, Declaration{Module: path, Names: names})
	}
	return decls
}

// constString reads an instruction's constant as a string, or "" when it is
// anything else.
func constString(chunk *bytecode.Chunk, ins bytecode.Instr) string {
	if s, ok := chunk.Constant(ins).(*object.String); ok {
		return s.Value
	}
	return ""
}

// constNames reads an import's name-list constant. Nil marks a bare import
// binding no names.
func constNames(chunk *bytecode.Chunk, ins bytecode.Instr) ([]string, bool) {
	switch c := chunk.Constant(ins).(type) {
	case *object.Nil:
		return nil, true
	case *object.List:
		names := make([]string, 0, len(c.Elements))
		for _, el := range c.Elements {
			s, ok := el.(*object.String)
			if !ok {
				return nil, false
			}
			names = append(names, s.Value)
		}
		return names, true
	}
	return nil, false
}
