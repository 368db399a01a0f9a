// atrac_slots.go - sceAtrac ID allocation

package main

import "go.uber.org/zap"

// SlotHandle names an acquired slot. The generation makes a handle go stale
// once the slot is released, even if the index is handed out again.
type SlotHandle struct {
	index      int
	generation uint32
}

// ID is the atrac id the game sees.
func (h SlotHandle) ID() int { return h.index }

type atracSlot struct {
	engine     AtracEngine
	generation uint32
	inUse      bool
}

// SlotTable owns the fixed pool of ATRAC contexts. Each slot's context
// record sits at contextBase + index*ATRAC_CONTEXT_SIZE in guest memory.
type SlotTable struct {
	mem         MemoryBus
	contextBase uint32
	factory     DecoderFactory
	slots       [PSP_NUM_ATRAC_IDS]atracSlot
}

func NewSlotTable(mem MemoryBus, contextBase uint32, factory DecoderFactory) *SlotTable {
	return &SlotTable{mem: mem, contextBase: contextBase, factory: factory}
}

func (s *SlotTable) contextAddr(index int) uint32 {
	return s.contextBase + uint32(index)*ATRAC_CONTEXT_SIZE
}

// Acquire takes the lowest free slot and binds a fresh engine of kind to it.
func (s *SlotTable) Acquire(kind EngineKind, codecType uint32) (SlotHandle, error) {
	if codecType != PSP_MODE_AT_3 && codecType != PSP_MODE_AT_3_PLUS {
		return SlotHandle{}, SCE_ERROR_ATRAC_BAD_CODECTYPE
	}
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.inUse {
			continue
		}
		slot.inUse = true
		slot.engine = NewAtracEngine(kind, s.mem, s.contextAddr(i), s.factory)
		slot.engine.SetAtracID(i)
		slot.engine.SetCodecType(codecType)
		logDebug("atrac id acquired", zap.Int("id", i), zap.Stringer("engine", kind), zap.Uint32("generation", slot.generation))
		return SlotHandle{index: i, generation: slot.generation}, nil
	}
	logWarn("no free atrac id", zap.Int("slots", PSP_NUM_ATRAC_IDS))
	return SlotHandle{}, SCE_ERROR_ATRAC_NO_ATRACID
}

func (s *SlotTable) lookup(h SlotHandle) (*atracSlot, error) {
	if h.index < 0 || h.index >= len(s.slots) {
		return nil, SCE_ERROR_ATRAC_BAD_ATRACID
	}
	slot := &s.slots[h.index]
	if !slot.inUse || slot.generation != h.generation {
		return nil, SCE_ERROR_ATRAC_BAD_ATRACID
	}
	return slot, nil
}

func (s *SlotTable) Get(h SlotHandle) (AtracEngine, error) {
	slot, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	return slot.engine, nil
}

// Release frees the slot. The handle and any copies of it are dead after.
func (s *SlotTable) Release(h SlotHandle) error {
	slot, err := s.lookup(h)
	if err != nil {
		return err
	}
	slot.engine = nil
	slot.inUse = false
	slot.generation++
	logDebug("atrac id released", zap.Int("id", h.index))
	return nil
}

// HandleForID returns the live handle for a raw atrac id, for syscalls
// that only carry the number.
func (s *SlotTable) HandleForID(id int) (SlotHandle, error) {
	if id < 0 || id >= len(s.slots) || !s.slots[id].inUse {
		return SlotHandle{}, SCE_ERROR_ATRAC_BAD_ATRACID
	}
	return SlotHandle{index: id, generation: s.slots[id].generation}, nil
}

func (s *SlotTable) InUse() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].inUse {
			n++
		}
	}
	return n
}
