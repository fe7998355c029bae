// Package bytecode defines the compiled form of Skink code: opcodes, chunks,
// function prototypes and the instruction decoder used by tooling that
// inspects compiled code.
package bytecode

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Stack manipulation
	OP_CONST Opcode = iota // Push constant from pool
	OP_POP                 // Discard top of stack
	OP_NIL                 // Push nil
	OP_TRUE                // Push true
	OP_FALSE               // Push false

	// Arithmetic
	OP_ADD // +
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_MOD // %
	OP_NEG // Unary minus

	// Comparison
	OP_EQ // ==
	OP_NE // !=
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=

	// Logic
	OP_NOT // !
	OP_AND // &&
	OP_OR  // ||

	// Names
	OP_LOAD_NAME  // Push value bound to name in the frame's name table
	OP_STORE_NAME // Pop value, bind it to name in the frame's name table

	// Attributes and elements
	OP_GET_ATTR  // [obj] -> [obj.name]
	OP_SET_ATTR  // [obj, val] -> [], sets obj.name
	OP_GET_INDEX // [obj, idx] -> [obj[idx]]
	OP_SET_INDEX // [obj, idx, val] -> [], sets obj[idx]

	// Data structures
	OP_MAKE_LIST // Create list from top N stack values

	// Control flow
	OP_JUMP             // Unconditional forward jump
	OP_JUMP_IF_FALSE    // Pop condition, jump forward if falsy
	OP_LOOP             // Jump backward
	OP_POP_JUMP_IF_TRUE // Pop condition, jump forward if truthy

	// Calls, legacy format
	OP_CALL_FUNCTION // Call with N args, callee below args

	// Calls, current format
	OP_PUSH_NULL // Push the call sentinel below the callee
	OP_PRECALL   // Prepare call with N args
	OP_CALL      // Complete call with N args

	OP_RETURN // Return from function

	// Context-managed blocks
	OP_SETUP_WITH        // Legacy: enter manager, register handler
	OP_BEFORE_WITH       // Current: enter manager, register handler
	OP_WITH_EXIT         // Leave block normally, run manager exit
	OP_WITH_EXCEPT_START // Handler entry: run manager exit with the error
	OP_RERAISE           // Re-raise the error being handled

	// Imports
	OP_IMPORT_NAME // [names-or-nil] -> [module], loads module by path constant
	OP_IMPORT_FROM // [module] -> [module, attr], fetch name from module

	// Classes
	OP_CLASS         // Push new empty class named by constant
	OP_METHOD        // [class, fn] -> [class], attach method
	OP_STATIC_METHOD // [class, fn] -> [class], attach static method
	OP_CLASS_VAR     // [class, val] -> [class], attach class variable

	// Halt
	OP_HALT // Stop execution of the module chunk
)

// OpcodeNames maps opcodes to their string names (for debugging)
var OpcodeNames = map[Opcode]string{
	OP_CONST: "CONST",
	OP_POP:   "POP",
	OP_NIL:   "NIL",
	OP_TRUE:  "TRUE",
	OP_FALSE: "FALSE",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_MOD: "MOD",
	OP_NEG: "NEG",

	OP_EQ: "EQ",
	OP_NE: "NE",
	OP_LT: "LT",
	OP_LE: "LE",
	OP_GT: "GT",
	OP_GE: "GE",

	OP_NOT: "NOT",
	OP_AND: "AND",
	OP_OR:  "OR",

	OP_LOAD_NAME:  "LOAD_NAME",
	OP_STORE_NAME: "STORE_NAME",

	OP_GET_ATTR:  "GET_ATTR",
	OP_SET_ATTR:  "SET_ATTR",
	OP_GET_INDEX: "GET_INDEX",
	OP_SET_INDEX: "SET_INDEX",

	OP_MAKE_LIST: "MAKE_LIST",

	OP_JUMP:             "JUMP",
	OP_JUMP_IF_FALSE:    "JUMP_IF_FALSE",
	OP_LOOP:             "LOOP",
	OP_POP_JUMP_IF_TRUE: "POP_JUMP_IF_TRUE",

	OP_CALL_FUNCTION: "CALL_FUNCTION",

	OP_PUSH_NULL: "PUSH_NULL",
	OP_PRECALL:   "PRECALL",
	OP_CALL:      "CALL",

	OP_RETURN: "RETURN",

	OP_SETUP_WITH:        "SETUP_WITH",
	OP_BEFORE_WITH:       "BEFORE_WITH",
	OP_WITH_EXIT:         "WITH_EXIT",
	OP_WITH_EXCEPT_START: "WITH_EXCEPT_START",
	OP_RERAISE:           "RERAISE",

	OP_IMPORT_NAME: "IMPORT_NAME",
	OP_IMPORT_FROM: "IMPORT_FROM",

	OP_CLASS:         "CLASS",
	OP_METHOD:        "METHOD",
	OP_STATIC_METHOD: "STATIC_METHOD",
	OP_CLASS_VAR:     "CLASS_VAR",

	OP_HALT: "HALT",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
