package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(ExecuteExternalCommand)
	require.Equal(t, "EXECUTE_EXTERNAL_COMMAND", info.Name)
	require.Equal(t, 2, info.OperandCount())
	require.Equal(t, 4, info.Size())
	require.Equal(t, ExecuteExternalCommand, info.Code)
}

func TestOperandWidths(t *testing.T) {
	tests := []struct {
		code Code
		size int
	}{
		{Halt, 1},
		{Return, 1},
		{PushEmptyTuple, 1},
		{PopTupleKeeping, 2},
		{MergeTuple, 1},
		{Pop, 2},
		{PushFalse, 1},
		{PushTrue, 1},
		{PushLiteral, 3},
		{SetLocal, 2},
		{PushLocal, 2},
		{PushInput, 1},
		{ExecuteCommand, 3},
		{ExecuteExternalCommand, 4},
		{ExecuteNativeCommand, 3},
		{JumpBackward, 3},
		{JumpForward, 3},
		{IfConditionJump, 3},
		{ForEachConditionJump, 3},
		{DebugHook, 1},
		{DebugPushDebugFrame, 1},
		{DebugPopDebugFrame, 1},
		{DebugPushVariableInfo, 4},
		{DebugPopVariableInfo, 2},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			require.Equal(t, tt.size, GetInfo(tt.code).Size())
		})
	}
}

func TestDebugThreshold(t *testing.T) {
	for c := Halt; c < DebugHook; c++ {
		require.False(t, c.IsDebug(), c.String())
	}
	for c := DebugHook; c <= DebugPopVariableInfo; c++ {
		require.True(t, c.IsDebug(), c.String())
	}
	require.Equal(t, "UNKNOWN", Code(200).String())
	require.True(t, IfConditionJump.IsJump())
	require.False(t, PushLiteral.IsJump())
}
