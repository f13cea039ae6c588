package jack

import "fmt"

// A Scope is a named, append-only sequence of variable declarations. Entries
// are never removed individually; the whole Scope is discarded at once when
// its owning construct (class or subroutine) ends.
type Scope struct {
	name    string
	entries []Variable
}

// ScopeTable tracks every variable visible at a given point during lowering.
//
// 'static' is intentionally never reset: static variables are declared once
// per class but, in this table, persist for the lifetime of the ScopeTable
// instance so that class-level static references keep resolving even after
// the enclosing class scope has been popped (this mirrors how a single
// Lowerer instance walks every class of a program against one shared table).
type ScopeTable struct {
	static []Variable

	className      string
	subroutineName string

	local     Scope
	field     Scope
	parameter Scope
}

func (st *ScopeTable) PushClassScope(class string) {
	st.className = class
	st.field = Scope{name: fmt.Sprintf("%s.Global", class)}
}

func (st *ScopeTable) PopClassScope() {
	st.className, st.field = "", Scope{}
}

func (st *ScopeTable) PushSubRoutineScope(method string) {
	st.subroutineName = method
	st.local = Scope{name: method}
	st.parameter = Scope{name: method}
}

func (st *ScopeTable) PopSubroutineScope() {
	st.subroutineName, st.local, st.parameter = "", Scope{}, Scope{}
}

// GetScope returns the fully-qualified name of the innermost active scope:
// "<Class>.<Subroutine>" while inside a subroutine, "<Class>.Global" while
// inside a class but outside any subroutine, or "Global" otherwise.
func (st *ScopeTable) GetScope() string {
	if st.subroutineName != "" {
		return fmt.Sprintf("%s.%s", st.className, st.subroutineName)
	}
	if st.className != "" {
		return fmt.Sprintf("%s.Global", st.className)
	}
	return "Global"
}

// RegisterVariable appends 'new' to the scope matching its kind. Redefining
// an already-registered name shadows it: the new entry gets the next index
// and subsequent lookups return it, but the earlier entry's own index is
// untouched (it is simply no longer reachable by name).
func (st *ScopeTable) RegisterVariable(new Variable) {
	switch new.Type {
	case Local:
		st.local.entries = append(st.local.entries, new)
	case Field:
		st.field.entries = append(st.field.entries, new)
	case Parameter:
		st.parameter.entries = append(st.parameter.entries, new)
	case Static:
		st.static = append(st.static, new)
	}
}

// ResolveVariable looks up 'name', most-recently-registered-wins, searching
// subroutine scopes (local, then parameter) before class scopes (field, then
// static) so that inner declarations shadow outer ones. The returned offset
// is the variable's declaration-order index within its own kind, suitable
// for direct use as a VM memory-segment offset.
func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	for _, scope := range []Scope{st.local, st.parameter, st.field, {entries: st.static}} {
		for idx := len(scope.entries) - 1; idx >= 0; idx-- {
			if scope.entries[idx].Name == name {
				return uint16(idx), scope.entries[idx], nil
			}
		}
	}

	return 0, Variable{}, fmt.Errorf("variable '%s' undeclared, not found in any scope", name)
}
