package entry

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// maxSeqInSegment scans headers only; used for snapshot-based truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		if seq := binary.BigEndian.Uint64(header[1:9]); seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(payloadLen+4), io.SeekCurrent); err != nil {
			return max, err
		}
	}
}

// intactLength returns the size of the run of whole frames at the start
// of a segment. A torn final frame, or a checksum failure whose claimed
// length runs to the end of the file, is excluded. A checksum failure
// with whole data behind it is reported as ErrCorrupt.
func intactLength(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}

	r := bufio.NewReader(f)
	var off int64
	for {
		rec, err := readRecord(r)
		switch {
		case err == nil:
			off += int64(headerSize + len(rec.Data) + 4)
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			return off, nil
		case errors.Is(err, ErrCorrupt):
			header := make([]byte, headerSize)
			if _, err := f.ReadAt(header, off); err != nil {
				return off, err
			}
			end := off + headerSize + int64(binary.BigEndian.Uint32(header[17:21])) + 4
			if end >= st.Size() {
				return off, nil
			}
			return off, errors.Wrapf(ErrCorrupt, "%s at offset %d", path, off)
		default:
			return off, err
		}
	}
}
