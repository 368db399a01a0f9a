// atrac_context.go - SceAtracContext record layout in guest memory

/*
atrac_context.go - Hardware context record

Each ATRAC slot owns a 256-byte SceAtracContext in guest memory. The first
128 bytes belong to the codec, the second 128 bytes are the SceAtracIdInfo
block games read directly. The hardware engine keeps all of its state here;
the legacy engine only mirrors its fields into it on request.

Layout version 1:

    codec block (0x00 - 0x7F)
      0x08  err             u32   last codec error, 0x20b on corrupt frame
      0x18  inBuf           u32   guest address of the frame being decoded

    info block (0x80 - 0xFF), offsets relative to 0x80
      0x00  decodePos        u32
      0x04  endSample        u32
      0x08  loopStart        u32
      0x0C  loopEnd          u32
      0x10  samplesPerChan   s32  samples still to skip before output
      0x14  numFrame         u8
      0x15  state            u8   AtracStatus
      0x16  unk22            u8
      0x17  numChan          u8
      0x18  sampleSize       u16  bytes per frame
      0x1A  codec            u16
      0x1C  dataOff          u32
      0x20  curOff           u32
      0x24  dataEnd          u32
      0x28  loopNum          s32
      0x2C  streamDataByte   u32
      0x30  streamOff        u32
      0x34  unk52            u32
      0x38  buffer           u32
      0x3C  secondBuffer     u32
      0x40  bufferByte       u32
      0x44  secondBufferByte u32
      0x48  unk[13]          u32
      0x7C  atracID          u32

Accessors go through the MemoryBus every time so game writes to the record
are seen immediately.
*/

package main

const (
	ATRAC_CONTEXT_VERSION   = 1
	ATRAC_CONTEXT_SIZE      = 0x100
	ATRAC_CODEC_BLOCK_SIZE  = 0x80
	ATRAC_INFO_BLOCK_OFFSET = 0x80

	CTX_CODEC_ERR    = 0x08
	CTX_CODEC_IN_BUF = 0x18

	INFO_DECODE_POS         = 0x00
	INFO_END_SAMPLE         = 0x04
	INFO_LOOP_START         = 0x08
	INFO_LOOP_END           = 0x0C
	INFO_SAMPLES_PER_CHAN   = 0x10
	INFO_NUM_FRAME          = 0x14
	INFO_STATE              = 0x15
	INFO_UNK22              = 0x16
	INFO_NUM_CHAN           = 0x17
	INFO_SAMPLE_SIZE        = 0x18
	INFO_CODEC              = 0x1A
	INFO_DATA_OFF           = 0x1C
	INFO_CUR_OFF            = 0x20
	INFO_DATA_END           = 0x24
	INFO_LOOP_NUM           = 0x28
	INFO_STREAM_DATA_BYTE   = 0x2C
	INFO_STREAM_OFF         = 0x30
	INFO_UNK52              = 0x34
	INFO_BUFFER             = 0x38
	INFO_SECOND_BUFFER      = 0x3C
	INFO_BUFFER_BYTE        = 0x40
	INFO_SECOND_BUFFER_BYTE = 0x44
	INFO_UNK                = 0x48
	INFO_ATRAC_ID           = 0x7C
)

// hwContext is a typed view of one SceAtracContext record.
type hwContext struct {
	mem  MemoryBus
	addr uint32
}

func (c hwContext) info(off uint32) uint32 {
	return c.addr + ATRAC_INFO_BLOCK_OFFSET + off
}

// Clear zeroes the whole record.
func (c hwContext) Clear() {
	c.mem.Memset(c.addr, 0, ATRAC_CONTEXT_SIZE)
}

func (c hwContext) CodecErr() uint32     { return c.mem.Read32(c.addr + CTX_CODEC_ERR) }
func (c hwContext) SetCodecErr(v uint32) { c.mem.Write32(c.addr+CTX_CODEC_ERR, v) }
func (c hwContext) InBuf() uint32        { return c.mem.Read32(c.addr + CTX_CODEC_IN_BUF) }
func (c hwContext) SetInBuf(v uint32)    { c.mem.Write32(c.addr+CTX_CODEC_IN_BUF, v) }

func (c hwContext) DecodePos() uint32     { return c.mem.Read32(c.info(INFO_DECODE_POS)) }
func (c hwContext) SetDecodePos(v uint32) { c.mem.Write32(c.info(INFO_DECODE_POS), v) }
func (c hwContext) EndSample() uint32     { return c.mem.Read32(c.info(INFO_END_SAMPLE)) }
func (c hwContext) SetEndSample(v uint32) { c.mem.Write32(c.info(INFO_END_SAMPLE), v) }
func (c hwContext) LoopStart() uint32     { return c.mem.Read32(c.info(INFO_LOOP_START)) }
func (c hwContext) SetLoopStart(v uint32) { c.mem.Write32(c.info(INFO_LOOP_START), v) }
func (c hwContext) LoopEnd() uint32       { return c.mem.Read32(c.info(INFO_LOOP_END)) }
func (c hwContext) SetLoopEnd(v uint32)   { c.mem.Write32(c.info(INFO_LOOP_END), v) }

func (c hwContext) SamplesPerChan() int32 {
	return int32(c.mem.Read32(c.info(INFO_SAMPLES_PER_CHAN)))
}

func (c hwContext) SetSamplesPerChan(v int32) {
	c.mem.Write32(c.info(INFO_SAMPLES_PER_CHAN), uint32(v))
}

func (c hwContext) NumFrame() uint8     { return c.mem.Read8(c.info(INFO_NUM_FRAME)) }
func (c hwContext) SetNumFrame(v uint8) { c.mem.Write8(c.info(INFO_NUM_FRAME), v) }

func (c hwContext) State() AtracStatus     { return AtracStatus(c.mem.Read8(c.info(INFO_STATE))) }
func (c hwContext) SetState(v AtracStatus) { c.mem.Write8(c.info(INFO_STATE), uint8(v)) }

func (c hwContext) NumChan() uint8     { return c.mem.Read8(c.info(INFO_NUM_CHAN)) }
func (c hwContext) SetNumChan(v uint8) { c.mem.Write8(c.info(INFO_NUM_CHAN), v) }

func (c hwContext) SampleSize() uint32     { return uint32(c.mem.Read16(c.info(INFO_SAMPLE_SIZE))) }
func (c hwContext) SetSampleSize(v uint32) { c.mem.Write16(c.info(INFO_SAMPLE_SIZE), uint16(v)) }
func (c hwContext) Codec() uint32          { return uint32(c.mem.Read16(c.info(INFO_CODEC))) }
func (c hwContext) SetCodec(v uint32)      { c.mem.Write16(c.info(INFO_CODEC), uint16(v)) }

func (c hwContext) DataOff() uint32     { return c.mem.Read32(c.info(INFO_DATA_OFF)) }
func (c hwContext) SetDataOff(v uint32) { c.mem.Write32(c.info(INFO_DATA_OFF), v) }
func (c hwContext) CurOff() uint32      { return c.mem.Read32(c.info(INFO_CUR_OFF)) }
func (c hwContext) SetCurOff(v uint32)  { c.mem.Write32(c.info(INFO_CUR_OFF), v) }
func (c hwContext) DataEnd() uint32     { return c.mem.Read32(c.info(INFO_DATA_END)) }
func (c hwContext) SetDataEnd(v uint32) { c.mem.Write32(c.info(INFO_DATA_END), v) }

func (c hwContext) LoopNum() int32     { return int32(c.mem.Read32(c.info(INFO_LOOP_NUM))) }
func (c hwContext) SetLoopNum(v int32) { c.mem.Write32(c.info(INFO_LOOP_NUM), uint32(v)) }

func (c hwContext) StreamDataByte() uint32     { return c.mem.Read32(c.info(INFO_STREAM_DATA_BYTE)) }
func (c hwContext) SetStreamDataByte(v uint32) { c.mem.Write32(c.info(INFO_STREAM_DATA_BYTE), v) }
func (c hwContext) StreamOff() uint32          { return c.mem.Read32(c.info(INFO_STREAM_OFF)) }
func (c hwContext) SetStreamOff(v uint32)      { c.mem.Write32(c.info(INFO_STREAM_OFF), v) }

func (c hwContext) Buffer() uint32               { return c.mem.Read32(c.info(INFO_BUFFER)) }
func (c hwContext) SetBuffer(v uint32)           { c.mem.Write32(c.info(INFO_BUFFER), v) }
func (c hwContext) SecondBuffer() uint32         { return c.mem.Read32(c.info(INFO_SECOND_BUFFER)) }
func (c hwContext) SetSecondBuffer(v uint32)     { c.mem.Write32(c.info(INFO_SECOND_BUFFER), v) }
func (c hwContext) BufferByte() uint32           { return c.mem.Read32(c.info(INFO_BUFFER_BYTE)) }
func (c hwContext) SetBufferByte(v uint32)       { c.mem.Write32(c.info(INFO_BUFFER_BYTE), v) }
func (c hwContext) SecondBufferByte() uint32     { return c.mem.Read32(c.info(INFO_SECOND_BUFFER_BYTE)) }
func (c hwContext) SetSecondBufferByte(v uint32) { c.mem.Write32(c.info(INFO_SECOND_BUFFER_BYTE), v) }

func (c hwContext) AtracID() uint32     { return c.mem.Read32(c.info(INFO_ATRAC_ID)) }
func (c hwContext) SetAtracID(v uint32) { c.mem.Write32(c.info(INFO_ATRAC_ID), v) }
