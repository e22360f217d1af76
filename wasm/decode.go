package wasm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wippyai/wasm2evm/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// ParseModule decodes a WebAssembly MVP binary module.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(bytes.NewReader(data))

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	var lastOrder int
	for {
		id, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.WrapError("section header", err)
		}
		if id != SectionCustom {
			order := sectionOrder(id)
			if order == 0 {
				return nil, r.WrapError("section header", fmt.Errorf("unknown section id %d", id))
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section %d appears out of order", id)
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		parse, name := sectionParser(id)
		sr := binary.NewReader(bytes.NewReader(payload))
		if err := parse(sr, m); err != nil {
			return nil, fmt.Errorf("%s section: %w", name, err)
		}
		if id != SectionCustom && sr.Position() != len(payload) {
			return nil, fmt.Errorf("%s section: %d trailing bytes", name, len(payload)-sr.Position())
		}
	}

	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths: %d != %d", len(m.Funcs), len(m.Code))
	}
	return m, nil
}

func sectionParser(id byte) (func(*binary.Reader, *Module) error, string) {
	switch id {
	case SectionType:
		return parseTypeSection, "type"
	case SectionImport:
		return parseImportSection, "import"
	case SectionFunction:
		return parseFunctionSection, "function"
	case SectionTable:
		return parseTableSection, "table"
	case SectionMemory:
		return parseMemorySection, "memory"
	case SectionGlobal:
		return parseGlobalSection, "global"
	case SectionExport:
		return parseExportSection, "export"
	case SectionStart:
		return parseStartSection, "start"
	case SectionElement:
		return parseElementSection, "element"
	case SectionDataCount:
		return parseDataCountSection, "data count"
	case SectionCode:
		return parseCodeSection, "code"
	case SectionData:
		return parseDataSection, "data"
	default:
		return parseCustomSection, "custom"
	}
}

// sectionOrder returns the canonical position of a section, 0 if unknown.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionGlobal:
		return 6
	case SectionExport:
		return 7
	case SectionStart:
		return 8
	case SectionElement:
		return 9
	case SectionDataCount:
		return 10
	case SectionCode:
		return 11
	case SectionData:
		return 12
	}
	return 0
}

// readVec reads a count and calls fn that many times.
func readVec(r *binary.Reader, fn func(i uint32) error) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := fn(i); err != nil {
			return r.WrapError("", fmt.Errorf("entry %d: %w", i, err))
		}
	}
	return nil
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	var data []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			break
		}
		data = append(data, b)
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: data})
	return nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return fmt.Errorf("unsupported type form 0x%02x", form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
		return nil
	})
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	var types []ValType
	err := readVec(r, func(uint32) error {
		vt, err := readValType(r)
		types = append(types, vt)
		return err
	})
	return types, err
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch vt := ValType(b); vt {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExtern:
		return vt, nil
	}
	return 0, fmt.Errorf("unsupported value type 0x%02x", b)
}

func parseImportSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		var imp Import
		var err error
		if imp.Module, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Name, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Desc.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		switch imp.Desc.Kind {
		case KindFunc:
			imp.Desc.TypeIdx, err = r.ReadU32()
		case KindTable:
			var t TableType
			t, err = readTableType(r)
			imp.Desc.Table = &t
		case KindMemory:
			var mt MemoryType
			mt.Limits, err = readLimits(r)
			imp.Desc.Memory = &mt
		case KindGlobal:
			var g GlobalType
			g, err = readGlobalType(r)
			imp.Desc.Global = &g
		default:
			err = fmt.Errorf("unknown import kind 0x%02x", imp.Desc.Kind)
		}
		if err != nil {
			return err
		}
		m.Imports = append(m.Imports, imp)
		return nil
	})
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		idx, err := r.ReadU32()
		m.Funcs = append(m.Funcs, idx)
		return err
	})
}

func parseTableSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		t, err := readTableType(r)
		m.Tables = append(m.Tables, t)
		return err
	})
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		l, err := readLimits(r)
		m.Memories = append(m.Memories, MemoryType{Limits: l})
		return err
	})
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readInitExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
		return nil
	})
}

func parseExportSection(r *binary.Reader, m *Module) error {
	seen := make(map[string]bool)
	return readVec(r, func(uint32) error {
		var exp Export
		var err error
		if exp.Name, err = r.ReadName(); err != nil {
			return err
		}
		if seen[exp.Name] {
			return fmt.Errorf("duplicate export name %q", exp.Name)
		}
		seen[exp.Name] = true
		if exp.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		if exp.Kind > KindGlobal {
			return fmt.Errorf("unknown export kind 0x%02x", exp.Kind)
		}
		if exp.Idx, err = r.ReadU32(); err != nil {
			return err
		}
		m.Exports = append(m.Exports, exp)
		return nil
	})
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func parseElementSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		if flags != 0 {
			return fmt.Errorf("unsupported element segment flags %d", flags)
		}
		offset, err := readInitExpr(r)
		if err != nil {
			return err
		}
		elem := Element{Offset: offset}
		err = readVec(r, func(uint32) error {
			idx, err := r.ReadU32()
			elem.FuncIdxs = append(elem.FuncIdxs, idx)
			return err
		})
		if err != nil {
			return err
		}
		m.Elements = append(m.Elements, elem)
		return nil
	})
}

func parseDataCountSection(r *binary.Reader, m *Module) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.DataCount = &n
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		start := r.Position()
		var body FuncBody
		err = readVec(r, func(uint32) error {
			count, err := r.ReadU32()
			if err != nil {
				return err
			}
			vt, err := readValType(r)
			body.Locals = append(body.Locals, LocalEntry{Count: count, ValType: vt})
			return err
		})
		if err != nil {
			return err
		}
		codeLen := int(size) - (r.Position() - start)
		if codeLen <= 0 {
			return fmt.Errorf("function body size %d too small", size)
		}
		if body.Code, err = r.ReadBytes(codeLen); err != nil {
			return err
		}
		if body.Code[len(body.Code)-1] != OpEnd {
			return errors.New("function body does not end with end opcode")
		}
		m.Code = append(m.Code, body)
		return nil
	})
}

func parseDataSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(uint32) error {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		var seg DataSegment
		switch flags {
		case 0:
			if seg.Offset, err = readInitExpr(r); err != nil {
				return err
			}
		case 1:
			seg.Passive = true
		default:
			return fmt.Errorf("unsupported data segment flags %d", flags)
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		if seg.Init, err = r.ReadBytes(int(n)); err != nil {
			return err
		}
		m.Data = append(m.Data, seg)
		return nil
	})
}

func readLimits(r *binary.Reader) (Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	var l Limits
	if l.Min, err = r.ReadU32(); err != nil {
		return l, err
	}
	switch flag {
	case 0x00:
	case 0x01:
		mx, err := r.ReadU32()
		if err != nil {
			return l, err
		}
		l.Max = &mx
	default:
		return l, fmt.Errorf("unsupported limits flag 0x%02x", flag)
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	et, err := readValType(r)
	if err != nil {
		return TableType{}, err
	}
	l, err := readLimits(r)
	return TableType{ElemType: et, Limits: l}, err
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid mutability 0x%02x", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

// readInitExpr copies a constant expression up to and including its end.
func readInitExpr(r *binary.Reader) ([]byte, error) {
	var buf []byte
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, op)
		var n int
		switch op {
		case OpEnd:
			return buf, nil
		case OpI32Const, OpI64Const, OpGlobalGet:
			n = -1
		case OpF32Const:
			n = 4
		case OpF64Const:
			n = 8
		default:
			return nil, fmt.Errorf("unsupported opcode 0x%02x in constant expression", op)
		}
		if n > 0 {
			b, err := r.ReadBytes(n)
			if err != nil {
				return nil, err
			}
			buf = append(buf, b...)
			continue
		}
		for {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			buf = append(buf, b)
			if b&0x80 == 0 {
				break
			}
		}
	}
}
