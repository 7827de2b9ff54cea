// Append-only, crash-recoverable journal of change records. On-disk format
// is a sequence of frames: 4-byte little-endian length of a zstd-compressed
// JSON-serialized ChangeRecord, followed by that payload. Every append is
// fsynced before it returns, so a record the caller saw succeed survives a
// crash.
package changejournal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/function61/gokit/logex"
	"github.com/function61/hitsync/pkg/hittypes"
	"github.com/klauspost/compress/zstd"
)

type Journal struct {
	file       *os.File
	log        *logex.Leveled
	compressor *zstd.Encoder
}

// opens the journal for appending, creating the file if absent. existing
// records are replayed and returned so the caller can seed its in-memory
// view. a torn final frame (crash mid-append) is truncated away with a
// warning - only the record whose append never succeeded is lost.
func Open(path string, logger *log.Logger) (*Journal, []hittypes.ChangeRecord, error) {
	logl := logex.Levels(logex.NonNil(logger))

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, nil, err
	}

	records, intactLen, err := readRecords(file, logl)
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	if err := file.Truncate(intactLen); err != nil {
		file.Close()
		return nil, nil, err
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, nil, err
	}

	compressor, err := zstd.NewWriter(nil)
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	return &Journal{
		file:       file,
		log:        logl,
		compressor: compressor,
	}, records, nil
}

// read-only replay of a journal file. a missing file is an empty journal,
// not an error - a fresh repository has no history.
func Load(path string, logger *log.Logger) ([]hittypes.ChangeRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []hittypes.ChangeRecord{}, nil
		}

		return nil, err
	}
	defer file.Close()

	records, _, err := readRecords(file, logex.Levels(logex.NonNil(logger)))
	return records, err
}

// serialize -> compress -> frame -> write -> fsync. on failure the file may
// contain a truncated final frame; Open() discards that on next start.
func (j *Journal) Append(record *hittypes.ChangeRecord) error {
	serialized, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("journal append: serialize: %v", err)
	}

	compressed := j.compressor.EncodeAll(serialized, nil)

	frame := make([]byte, 4+len(compressed))
	binary.LittleEndian.PutUint32(frame, uint32(len(compressed)))
	copy(frame[4:], compressed)

	if _, err := j.file.Write(frame); err != nil {
		j.log.Error.Printf("append record %d: %v", record.ID, err)
		return err
	}

	if err := j.file.Sync(); err != nil {
		j.log.Error.Printf("sync after record %d: %v", record.ID, err)
		return err
	}

	return nil
}

func (j *Journal) Close() error {
	j.compressor.Close()
	return j.file.Close()
}

// reads frames sequentially until a clean EOF at a frame boundary. returns
// the records plus the byte offset of the last complete frame, so the
// caller can truncate a torn tail. a frame that is complete but fails to
// decompress or decode means corruption beyond what a crash explains, and
// that is a hard error.
func readRecords(file *os.File, logl *logex.Leveled) ([]hittypes.ChangeRecord, int64, error) {
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return nil, 0, err
	}
	defer decompressor.Close()

	records := []hittypes.ChangeRecord{}
	intactLen := int64(0)

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(file, lenBuf); err != nil {
			if err == io.EOF { // clean end at frame boundary
				return records, intactLen, nil
			}
			if err == io.ErrUnexpectedEOF { // torn mid-header
				logl.Error.Printf("journal has torn frame header at offset %d; truncating", intactLen)
				return records, intactLen, nil
			}

			return nil, 0, err
		}

		payload := make([]byte, binary.LittleEndian.Uint32(lenBuf))
		if _, err := io.ReadFull(file, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF { // torn mid-payload
				logl.Error.Printf("journal has torn frame payload at offset %d; truncating", intactLen)
				return records, intactLen, nil
			}

			return nil, 0, err
		}

		serialized, err := decompressor.DecodeAll(payload, nil)
		if err != nil {
			logl.Error.Printf("journal frame at offset %d: decompress: %v", intactLen, err)
			return nil, 0, fmt.Errorf("journal likely corrupt: %v", err)
		}

		record := hittypes.ChangeRecord{}
		if err := json.Unmarshal(serialized, &record); err != nil {
			logl.Error.Printf("journal frame at offset %d: decode: %v", intactLen, err)
			return nil, 0, fmt.Errorf("journal likely corrupt: %v", err)
		}

		records = append(records, record)
		intactLen += int64(4 + len(payload))
	}
}
