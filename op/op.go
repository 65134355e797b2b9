// Package op defines opcodes shared by the maestro compiler and virtual machine.
package op

// Code is a single-byte opcode that indicates an operation to execute.
type Code uint8

const (
	// Execution
	Halt           Code = 0
	Return         Code = 1
	PushEmptyTuple Code = 2

	// Tuples and stack
	PopTupleKeeping Code = 3
	MergeTuple      Code = 4
	Pop             Code = 5

	// Push
	PushFalse   Code = 6
	PushTrue    Code = 7
	PushLiteral Code = 8

	// Locals
	SetLocal  Code = 9
	PushLocal Code = 10
	PushInput Code = 11

	// Calls
	ExecuteCommand         Code = 12
	ExecuteExternalCommand Code = 13
	ExecuteNativeCommand   Code = 14

	// Jump
	JumpBackward         Code = 15
	JumpForward          Code = 16
	IfConditionJump      Code = 17
	ForEachConditionJump Code = 18

	// Debug. Every opcode from DebugHook onward exists only in debug builds.
	DebugHook             Code = 19
	DebugPushDebugFrame   Code = 20
	DebugPopDebugFrame    Code = 21
	DebugPushVariableInfo Code = 22
	DebugPopVariableInfo  Code = 23
)

// Info contains information about an opcode.
type Info struct {
	Code Code
	Name string
	// OperandWidths lists the byte width of each operand in encoding order.
	OperandWidths []int
}

// OperandCount returns the number of operands following the opcode.
func (i Info) OperandCount() int {
	return len(i.OperandWidths)
}

// Size returns the encoded size of the instruction including the opcode.
func (i Info) Size() int {
	size := 1
	for _, w := range i.OperandWidths {
		size += w
	}
	return size
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op     Code
		name   string
		widths []int
	}
	ops := []opInfo{
		{Halt, "HALT", nil},
		{Return, "RETURN", nil},
		{PushEmptyTuple, "PUSH_EMPTY_TUPLE", nil},
		{PopTupleKeeping, "POP_TUPLE_KEEPING", []int{1}},
		{MergeTuple, "MERGE_TUPLE", nil},
		{Pop, "POP", []int{1}},
		{PushFalse, "PUSH_FALSE", nil},
		{PushTrue, "PUSH_TRUE", nil},
		{PushLiteral, "PUSH_LITERAL", []int{2}},
		{SetLocal, "SET_LOCAL", []int{1}},
		{PushLocal, "PUSH_LOCAL", []int{1}},
		{PushInput, "PUSH_INPUT", nil},
		{ExecuteCommand, "EXECUTE_COMMAND", []int{2}},
		{ExecuteExternalCommand, "EXECUTE_EXTERNAL_COMMAND", []int{1, 2}},
		{ExecuteNativeCommand, "EXECUTE_NATIVE_COMMAND", []int{2}},
		{JumpBackward, "JUMP_BACKWARD", []int{2}},
		{JumpForward, "JUMP_FORWARD", []int{2}},
		{IfConditionJump, "IF_CONDITION_JUMP", []int{2}},
		{ForEachConditionJump, "FOR_EACH_CONDITION_JUMP", []int{2}},
		{DebugHook, "DEBUG_HOOK", nil},
		{DebugPushDebugFrame, "DEBUG_PUSH_DEBUG_FRAME", nil},
		{DebugPopDebugFrame, "DEBUG_POP_DEBUG_FRAME", nil},
		{DebugPushVariableInfo, "DEBUG_PUSH_VARIABLE_INFO", []int{2, 1}},
		{DebugPopVariableInfo, "DEBUG_POP_VARIABLE_INFO", []int{1}},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Code:          o.op,
			Name:          o.name,
			OperandWidths: o.widths,
		}
	}
}

// GetInfo returns information about the given opcode. Unknown opcodes have an
// empty name.
func GetInfo(op Code) Info {
	return infos[op]
}

// IsDebug reports whether the opcode is only emitted in debug builds.
func (c Code) IsDebug() bool {
	return c >= DebugHook && c <= DebugPopVariableInfo
}

// IsJump reports whether the opcode carries a relative jump offset.
func (c Code) IsJump() bool {
	switch c {
	case JumpBackward, JumpForward, IfConditionJump, ForEachConditionJump:
		return true
	}
	return false
}

func (c Code) String() string {
	if name := infos[c].Name; name != "" {
		return name
	}
	return "UNKNOWN"
}
