package jack

import (
	_ "embed"
	"encoding/json"
)

//go:embed stdlib.json
var content string

// StandardLibraryABI maps a Nand2Tetris OS class name to its method table (itself
// keyed by method name), giving the Lowerer enough of a signature to resolve a
// 'call Klass.method' against a class that is never locally defined in the
// program being compiled, without emitting its body (the OS is linked separately).
var StandardLibraryABI = map[string]map[string]Subroutine{}

func init() { json.Unmarshal([]byte(content), &StandardLibraryABI) }
