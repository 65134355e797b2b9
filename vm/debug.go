package vm

import (
	"github.com/maestro-lang/maestro/bytecode"
)

// Debugger receives callbacks from a VM running debug builds. OnHook runs
// before every instruction on the executing goroutine and may block it for
// as long as execution should stay paused.
type Debugger interface {
	OnBegin(vm *VirtualMachine, asm *bytecode.Assembly)
	OnHook(vm *VirtualMachine)
	OnEnd(vm *VirtualMachine, asm *bytecode.Assembly)
}

// VariableInfo names a live variable and its absolute stack slot.
type VariableInfo struct {
	Name       string
	StackIndex int
}

// DebugInfo tracks the variables of every active command in debug builds.
// Frames[i] is the index into Variables where the i-th frame's variables
// begin.
type DebugInfo struct {
	Frames    []int
	Variables []VariableInfo
}

func (d *DebugInfo) PushFrame() {
	d.Frames = append(d.Frames, len(d.Variables))
}

func (d *DebugInfo) PopFrame() {
	n := len(d.Frames)
	if n == 0 {
		return
	}
	if start := d.Frames[n-1]; start < len(d.Variables) {
		d.Variables = d.Variables[:start]
	}
	d.Frames = d.Frames[:n-1]
}

func (d *DebugInfo) PushVariable(name string, stackIndex int) {
	d.Variables = append(d.Variables, VariableInfo{Name: name, StackIndex: stackIndex})
}

func (d *DebugInfo) PopVariables(count int) {
	if count > len(d.Variables) {
		count = len(d.Variables)
	}
	d.Variables = d.Variables[:len(d.Variables)-count]
}

// FrameVariables returns the variables of the frame at depth, where depth 0
// is the outermost debug frame.
func (d *DebugInfo) FrameVariables(depth int) []VariableInfo {
	if depth < 0 || depth >= len(d.Frames) {
		return nil
	}
	start := d.Frames[depth]
	end := len(d.Variables)
	if depth+1 < len(d.Frames) {
		end = d.Frames[depth+1]
	}
	return d.Variables[start:end]
}

func (d *DebugInfo) Clear() {
	d.Frames = d.Frames[:0]
	d.Variables = d.Variables[:0]
}

// DebugFrameIndex maps the VM frame at depth to its index in
// DebugInfo().Frames. Only commands of debug builds push a debug frame, so
// frames of release builds, the sentinel, and a command already past its
// debug frame report false.
func (vm *VirtualMachine) DebugFrameIndex(depth int) (int, bool) {
	if depth < 1 || depth >= len(vm.stackFrames) {
		return 0, false
	}
	index := -1
	for _, frame := range vm.stackFrames[1 : depth+1] {
		if frame.Executable != nil && frame.Executable.Assembly.Debug {
			index++
		}
	}
	frame := vm.stackFrames[depth]
	if frame.Executable == nil || !frame.Executable.Assembly.Debug || index >= len(vm.debugInfo.Frames) {
		return 0, false
	}
	return index, true
}
