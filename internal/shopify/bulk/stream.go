package bulk

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"charm.land/log/v2"
)

// maxLineBytes bounds a single JSONL line. Metaobject fields holding rich
// text can run large, but not this large.
const maxLineBytes = 16 * 1024 * 1024

// Stream reassembles a bulk result file. Bulk output flattens nested
// connections into standalone lines tagged with __parentId; child lines of a
// root appear after the root and before the next root. The stream buffers the
// open root, attaches children to it (or to a nested child carrying an id),
// and emits the completed record when the next root line arrives.
//
// Child lines are routed by __typename, which the bulk queries request on
// every nested selection: childKeys maps a typename to the slice field the
// child is appended to on its parent.
//
// Lines that fail to parse or attach are logged and skipped; they never abort
// the sequence. Skipped reports how many were dropped.
type Stream struct {
	sc        *bufio.Scanner
	childKeys map[string]string
	logger    *log.Logger

	root    map[string]any
	index   map[string]map[string]any
	out     map[string]any
	skipped int
	err     error
}

// NewStream reads bulk JSONL from r. childKeys routes child typenames to
// parent field names, e.g. {"ProductVariant": "variants"}.
func NewStream(r io.Reader, childKeys map[string]string) *Stream {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Stream{
		sc:        sc,
		childKeys: childKeys,
		logger:    log.New(io.Discard),
		index:     make(map[string]map[string]any),
	}
}

// WithLogger routes skipped-line warnings to the given logger.
func (s *Stream) WithLogger(logger *log.Logger) *Stream {
	s.logger = logger
	return s
}

// Next advances to the next fully reassembled record. It returns false at
// the end of the file or on a read error; check Err afterwards.
func (s *Stream) Next() bool {
	if s.err != nil {
		return false
	}

	for s.sc.Scan() {
		line := bytes.TrimSpace(s.sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			s.skip("failed to parse bulk line", err)
			continue
		}

		parentID, isChild := obj["__parentId"].(string)
		if !isChild {
			prev := s.root
			s.open(obj)
			if prev != nil {
				s.out = prev
				return true
			}
			continue
		}

		if err := s.attach(parentID, obj); err != nil {
			s.skip("failed to attach bulk line", err)
		}
	}

	if err := s.sc.Err(); err != nil {
		s.err = fmt.Errorf("failed to read bulk result: %w", err)
		return false
	}
	if s.root != nil {
		s.out = s.root
		s.root = nil
		return true
	}
	return false
}

// Record returns the record produced by the last successful Next.
func (s *Stream) Record() map[string]any {
	return s.out
}

// Err returns the read error that stopped the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Skipped returns the number of lines dropped as unparseable or unroutable.
func (s *Stream) Skipped() int {
	return s.skipped
}

func (s *Stream) skip(msg string, err error) {
	s.skipped++
	s.logger.Warn(msg, "error", err)
}

func (s *Stream) open(obj map[string]any) {
	delete(obj, "__typename")
	s.root = obj
	s.index = make(map[string]map[string]any)
	if id, ok := obj["id"].(string); ok {
		s.index[id] = obj
	}
}

func (s *Stream) attach(parentID string, obj map[string]any) error {
	delete(obj, "__parentId")
	typename, _ := obj["__typename"].(string)
	delete(obj, "__typename")

	key, ok := s.childKeys[typename]
	if !ok {
		return fmt.Errorf("unmapped child type %q", typename)
	}
	parent, ok := s.index[parentID]
	if !ok {
		return fmt.Errorf("unknown parent %s", parentID)
	}

	arr, _ := parent[key].([]any)
	parent[key] = append(arr, obj)

	// Children can parent deeper connections of their own.
	if id, ok := obj["id"].(string); ok {
		s.index[id] = obj
	}
	return nil
}
