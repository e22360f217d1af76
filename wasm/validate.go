package wasm

import "fmt"

// Validate checks index references across sections. It does not type-check
// function bodies; the reference engine does that when enabled.
func (m *Module) Validate() error {
	checks := []func() error{
		m.validateTypeIndices,
		m.validateExports,
		m.validateStart,
		m.validateElements,
		m.validateDataCount,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// ParseModuleValidate parses and validates a module.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) numFuncs() uint32 {
	return uint32(m.NumImportedFuncs() + len(m.Funcs))
}

func (m *Module) validateTypeIndices() error {
	n := uint32(len(m.Types))
	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && imp.Desc.TypeIdx >= n {
			return fmt.Errorf("import %d (%s.%s): type index %d out of range (%d types)", i, imp.Module, imp.Name, imp.Desc.TypeIdx, n)
		}
	}
	for i, idx := range m.Funcs {
		if idx >= n {
			return fmt.Errorf("function %d: type index %d out of range (%d types)", i, idx, n)
		}
	}
	return nil
}

func (m *Module) validateExports() error {
	for _, exp := range m.Exports {
		var limit uint32
		switch exp.Kind {
		case KindFunc:
			limit = m.numFuncs()
		case KindTable:
			limit = uint32(len(m.Tables))
		case KindMemory:
			limit = uint32(len(m.Memories))
		case KindGlobal:
			limit = uint32(m.NumImportedGlobals() + len(m.Globals))
		}
		for _, imp := range m.Imports {
			if exp.Kind != KindFunc && exp.Kind != KindGlobal && imp.Desc.Kind == exp.Kind {
				limit++
			}
		}
		if exp.Idx >= limit {
			return fmt.Errorf("export %q: index %d out of range", exp.Name, exp.Idx)
		}
	}
	return nil
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}
	if *m.Start >= m.numFuncs() {
		return fmt.Errorf("start function index %d out of range", *m.Start)
	}
	ft := m.GetFuncType(*m.Start)
	if ft == nil || len(ft.Params) != 0 || len(ft.Results) != 0 {
		return fmt.Errorf("start function %d must have type [] -> []", *m.Start)
	}
	return nil
}

func (m *Module) validateElements() error {
	n := m.numFuncs()
	for i, elem := range m.Elements {
		for _, idx := range elem.FuncIdxs {
			if idx >= n {
				return fmt.Errorf("element %d: function index %d out of range", i, idx)
			}
		}
	}
	return nil
}

func (m *Module) validateDataCount() error {
	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		return fmt.Errorf("data count %d does not match %d data segments", *m.DataCount, len(m.Data))
	}
	return nil
}
