package bytecode

import (
	"github.com/maestro-lang/maestro/errz"
	"github.com/maestro-lang/maestro/token"
)

// SourceIndexAt returns the index of the source unit that produced the byte
// at codeIndex, or -1 when the assembly carries no source runs.
func (a *Assembly) SourceIndexAt(codeIndex int) int {
	result := -1
	for _, run := range a.SourceRuns {
		if run.CodeIndex > codeIndex {
			break
		}
		result = run.SourceIndex
	}
	return result
}

// SliceAt returns the source range responsible for the byte at codeIndex.
func (a *Assembly) SliceAt(codeIndex int) token.Slice {
	if codeIndex < 0 || codeIndex >= len(a.SourceSlices) {
		return token.Slice{Index: -1}
	}
	return a.SourceSlices[codeIndex]
}

// LocationAt resolves the byte at codeIndex to a source location.
func (a *Assembly) LocationAt(codeIndex int) errz.SourceLocation {
	return a.LocationOf(a.SourceIndexAt(codeIndex), a.SliceAt(codeIndex))
}

// LocationOf resolves slice within the source at sourceIndex.
func (a *Assembly) LocationOf(sourceIndex int, slice token.Slice) errz.SourceLocation {
	if sourceIndex < 0 || sourceIndex >= len(a.Sources) {
		return errz.SourceLocation{}
	}
	src := a.Sources[sourceIndex]
	return errz.LocationOf(src.URI, src.Content, slice)
}
