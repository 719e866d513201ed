// Package replay drives an arena.AllocFunc with recorded or synthetic interpreter allocation traces.
//
// A trace is a text file with one event per line:
//
//	a <id> <nsize>          allocation of nsize bytes bound to id
//	r <id> <osize> <nsize>  reallocation of the block bound to id
//	f <id> <osize>          deallocation of the block bound to id
//	x                       host resets the arena, every live id is forgotten
//
// Empty lines and lines starting with # are ignored.
package replay

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind of a trace event.
type Kind byte

const (
	KindAllocate   Kind = 'a'
	KindReallocate Kind = 'r'
	KindFree       Kind = 'f'
	KindReset      Kind = 'x'
)

func (k Kind) String() string {
	switch k {
	case KindAllocate:
		return "allocate"
	case KindReallocate:
		return "reallocate"
	case KindFree:
		return "free"
	case KindReset:
		return "reset"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Event is a single hook call, expressed with block ids instead of pointers.
type Event struct {
	Kind    Kind
	ID      uint64
	OldSize uintptr
	NewSize uintptr
}

// Trace is an ordered list of events.
type Trace []Event

// Parse reads a trace in the text format.
func Parse(r io.Reader) (Trace, error) {
	var result Trace
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		event, parseErr := parseEvent(strings.Fields(line))
		if parseErr != nil {
			return nil, errors.Wrapf(parseErr, "line %d", lineNumber)
		}
		result = append(result, event)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, errors.Wrap(scanErr, "can't read trace")
	}
	return result, nil
}

func parseEvent(fields []string) (Event, error) {
	if len(fields[0]) != 1 {
		return Event{}, errors.Errorf("unknown event %q", fields[0])
	}
	kind := Kind(fields[0][0])
	expectedArgs := map[Kind]int{KindAllocate: 2, KindReallocate: 3, KindFree: 2, KindReset: 0}
	argsCount, known := expectedArgs[kind]
	if !known {
		return Event{}, errors.Errorf("unknown event %q", fields[0])
	}
	if len(fields)-1 != argsCount {
		return Event{}, errors.Errorf("%v expects %d arguments, got %d", kind, argsCount, len(fields)-1)
	}
	if kind == KindReset {
		return Event{Kind: kind}, nil
	}

	numbers := make([]uint64, argsCount)
	for i, field := range fields[1:] {
		n, numErr := strconv.ParseUint(field, 10, 64)
		if numErr != nil {
			return Event{}, errors.Wrapf(numErr, "invalid %v argument %q", kind, field)
		}
		numbers[i] = n
	}
	event := Event{Kind: kind, ID: numbers[0]}
	switch kind {
	case KindAllocate:
		event.NewSize = uintptr(numbers[1])
	case KindReallocate:
		event.OldSize = uintptr(numbers[1])
		event.NewSize = uintptr(numbers[2])
	case KindFree:
		event.OldSize = uintptr(numbers[1])
	}
	if kind != KindFree && event.NewSize == 0 {
		return Event{}, errors.Errorf("%v of 0 bytes, use f to free blocks", kind)
	}
	return event, nil
}

// WriteTo writes the trace in the text format.
func (t Trace) WriteTo(w io.Writer) (int64, error) {
	out := bufio.NewWriter(w)
	written := int64(0)
	line := make([]byte, 0, 64)
	for _, event := range t {
		line = append(line[:0], byte(event.Kind))
		switch event.Kind {
		case KindAllocate:
			line = appendNumbers(line, event.ID, uint64(event.NewSize))
		case KindReallocate:
			line = appendNumbers(line, event.ID, uint64(event.OldSize), uint64(event.NewSize))
		case KindFree:
			line = appendNumbers(line, event.ID, uint64(event.OldSize))
		}
		line = append(line, '\n')
		n, writeErr := out.Write(line)
		written += int64(n)
		if writeErr != nil {
			return written, errors.Wrap(writeErr, "can't write trace")
		}
	}
	if flushErr := out.Flush(); flushErr != nil {
		return written, errors.Wrap(flushErr, "can't write trace")
	}
	return written, nil
}

func appendNumbers(line []byte, numbers ...uint64) []byte {
	for _, n := range numbers {
		line = append(line, ' ')
		line = strconv.AppendUint(line, n, 10)
	}
	return line
}
