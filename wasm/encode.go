package wasm

import (
	"github.com/wippyai/wasm2evm/wasm/internal/binary"
)

// Encode serializes the module to the binary format.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	section := func(id byte, n int, fn func(sec *binary.Writer, i int)) {
		if n == 0 {
			return
		}
		sec := binary.NewWriter()
		sec.WriteU32(uint32(n))
		for i := 0; i < n; i++ {
			fn(sec, i)
		}
		writeSection(w, id, sec.Bytes())
	}

	section(SectionType, len(m.Types), func(sec *binary.Writer, i int) {
		sec.Byte(FuncTypeByte)
		writeValTypes(sec, m.Types[i].Params)
		writeValTypes(sec, m.Types[i].Results)
	})

	section(SectionImport, len(m.Imports), func(sec *binary.Writer, i int) {
		imp := m.Imports[i]
		sec.WriteName(imp.Module)
		sec.WriteName(imp.Name)
		sec.Byte(imp.Desc.Kind)
		switch imp.Desc.Kind {
		case KindFunc:
			sec.WriteU32(imp.Desc.TypeIdx)
		case KindTable:
			writeTableType(sec, *imp.Desc.Table)
		case KindMemory:
			writeLimits(sec, imp.Desc.Memory.Limits)
		case KindGlobal:
			writeGlobalType(sec, *imp.Desc.Global)
		}
	})

	section(SectionFunction, len(m.Funcs), func(sec *binary.Writer, i int) {
		sec.WriteU32(m.Funcs[i])
	})

	section(SectionTable, len(m.Tables), func(sec *binary.Writer, i int) {
		writeTableType(sec, m.Tables[i])
	})

	section(SectionMemory, len(m.Memories), func(sec *binary.Writer, i int) {
		writeLimits(sec, m.Memories[i].Limits)
	})

	section(SectionGlobal, len(m.Globals), func(sec *binary.Writer, i int) {
		writeGlobalType(sec, m.Globals[i].Type)
		sec.WriteBytes(m.Globals[i].Init)
	})

	section(SectionExport, len(m.Exports), func(sec *binary.Writer, i int) {
		exp := m.Exports[i]
		sec.WriteName(exp.Name)
		sec.Byte(exp.Kind)
		sec.WriteU32(exp.Idx)
	})

	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		writeSection(w, SectionStart, sec.Bytes())
	}

	section(SectionElement, len(m.Elements), func(sec *binary.Writer, i int) {
		elem := m.Elements[i]
		sec.WriteU32(0)
		sec.WriteBytes(elem.Offset)
		sec.WriteU32(uint32(len(elem.FuncIdxs)))
		for _, idx := range elem.FuncIdxs {
			sec.WriteU32(idx)
		}
	})

	if m.DataCount != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.DataCount)
		writeSection(w, SectionDataCount, sec.Bytes())
	}

	section(SectionCode, len(m.Code), func(sec *binary.Writer, i int) {
		body := binary.NewWriter()
		body.WriteU32(uint32(len(m.Code[i].Locals)))
		for _, l := range m.Code[i].Locals {
			body.WriteU32(l.Count)
			body.Byte(byte(l.ValType))
		}
		body.WriteBytes(m.Code[i].Code)
		sec.WriteU32(uint32(body.Len()))
		sec.WriteBytes(body.Bytes())
	})

	section(SectionData, len(m.Data), func(sec *binary.Writer, i int) {
		seg := m.Data[i]
		if seg.Passive {
			sec.WriteU32(1)
		} else {
			sec.WriteU32(0)
			sec.WriteBytes(seg.Offset)
		}
		sec.WriteU32(uint32(len(seg.Init)))
		sec.WriteBytes(seg.Init)
	})

	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		writeSection(w, SectionCustom, sec.Bytes())
	}

	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(data)))
	w.WriteBytes(data)
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max != nil {
		w.Byte(0x01)
		w.WriteU32(l.Min)
		w.WriteU32(*l.Max)
		return
	}
	w.Byte(0x00)
	w.WriteU32(l.Min)
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}
