package model

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// minRecordLen is the shortest line that can hold three columns.
const minRecordLen = 5

// MaxEntities bounds the item and worker counts a dataset may declare.
const MaxEntities = 1 << 22

// labelPrealloc caps the label capacity allocated from a header count.
const labelPrealloc = 1 << 16

// Label is one binary judgment by a worker about an item.
type Label struct {
	Item   int
	Worker int
	Value  int // 0 or 1
}

// Entry is one side of a label as seen from an adjacency list: the index
// of the other endpoint and the observed value.
type Entry struct {
	Index int
	Value int
}

// Dataset holds the label list and its two adjacency indices.
// It is read-only once built.
type Dataset struct {
	NumItems   int
	NumWorkers int
	Labels     []Label
	ByWorker   [][]Entry // ByWorker[j]: (item, value) for every label by worker j
	ByItem     [][]Entry // ByItem[i]: (worker, value) for every label on item i
}

// ReadOptions controls how a label file is parsed.
type ReadOptions struct {
	// Strict rejects lines that cannot be parsed as three integers
	// instead of skipping them.
	Strict bool
}

// NewDataset validates labels against the declared counts and builds the
// per-worker and per-item adjacency lists, preserving label order.
func NewDataset(numItems, numWorkers int, labels []Label) (*Dataset, error) {
	if numItems < 0 || numWorkers < 0 {
		return nil, fmt.Errorf("%w: negative counts (%d items, %d workers)",
			ErrInvalidRecord, numItems, numWorkers)
	}
	if numItems > MaxEntities || numWorkers > MaxEntities {
		return nil, fmt.Errorf("%w: counts (%d items, %d workers) exceed %d",
			ErrInvalidRecord, numItems, numWorkers, MaxEntities)
	}

	itemDeg := make([]int, numItems)
	workerDeg := make([]int, numWorkers)
	for k, l := range labels {
		if l.Item < 0 || l.Item >= numItems {
			return nil, fmt.Errorf("%w: label %d: item %d outside [0, %d)",
				ErrInvalidRecord, k, l.Item, numItems)
		}
		if l.Worker < 0 || l.Worker >= numWorkers {
			return nil, fmt.Errorf("%w: label %d: worker %d outside [0, %d)",
				ErrInvalidRecord, k, l.Worker, numWorkers)
		}
		if l.Value != 0 && l.Value != 1 {
			return nil, fmt.Errorf("%w: label %d: value %d is not 0 or 1",
				ErrInvalidRecord, k, l.Value)
		}
		itemDeg[l.Item]++
		workerDeg[l.Worker]++
	}

	ds := &Dataset{
		NumItems:   numItems,
		NumWorkers: numWorkers,
		Labels:     make([]Label, len(labels)),
		ByWorker:   make([][]Entry, numWorkers),
		ByItem:     make([][]Entry, numItems),
	}
	copy(ds.Labels, labels)
	for i := range ds.ByItem {
		ds.ByItem[i] = make([]Entry, 0, itemDeg[i])
	}
	for j := range ds.ByWorker {
		ds.ByWorker[j] = make([]Entry, 0, workerDeg[j])
	}
	for _, l := range ds.Labels {
		ds.ByItem[l.Item] = append(ds.ByItem[l.Item], Entry{Index: l.Worker, Value: l.Value})
		ds.ByWorker[l.Worker] = append(ds.ByWorker[l.Worker], Entry{Index: l.Item, Value: l.Value})
	}
	return ds, nil
}

// NumLabels returns the number of observations.
func (ds *Dataset) NumLabels() int {
	return len(ds.Labels)
}

// WorkerDegrees returns the number of labels produced by each worker.
func (ds *Dataset) WorkerDegrees() []int {
	deg := make([]int, ds.NumWorkers)
	for j, entries := range ds.ByWorker {
		deg[j] = len(entries)
	}
	return deg
}

// ItemDegrees returns the number of labels received by each item.
func (ds *Dataset) ItemDegrees() []int {
	deg := make([]int, ds.NumItems)
	for i, entries := range ds.ByItem {
		deg[i] = len(entries)
	}
	return deg
}

// LoadDataset reads a label file from disk.
func LoadDataset(path string, opts ReadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	ds, err := ReadDataset(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("Dataset loaded", "path", path,
		"items", ds.NumItems, "workers", ds.NumWorkers, "labels", ds.NumLabels())
	return ds, nil
}

// ReadDataset parses the flat label format:
//
//	numItems numWorkers numLabels
//	item worker label
//	...
//
// Lines shorter than five characters are skipped. Lines that do not hold
// three integers are skipped unless opts.Strict is set.
func ReadDataset(r io.Reader, opts ReadOptions) (*Dataset, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("%w: line 1: %w", ErrInvalidRecord, err)
		}
		return nil, fmt.Errorf("%w: missing header", ErrInvalidRecord)
	}
	header, ok := parseTriple(sc.Text())
	if !ok {
		return nil, fmt.Errorf("%w: malformed header %q", ErrInvalidRecord, sc.Text())
	}
	numItems, numWorkers, numLabels := header[0], header[1], header[2]
	if numLabels < 0 {
		return nil, fmt.Errorf("%w: negative label count %d", ErrInvalidRecord, numLabels)
	}
	if numItems < 0 || numWorkers < 0 || numItems > MaxEntities || numWorkers > MaxEntities {
		return nil, fmt.Errorf("%w: header counts (%d items, %d workers) outside [0, %d]",
			ErrInvalidRecord, numItems, numWorkers, MaxEntities)
	}

	labels := make([]Label, 0, min(numLabels, labelPrealloc))
	lineNo := 1
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if len(line) < minRecordLen {
			continue
		}
		rec, ok := parseTriple(line)
		if !ok {
			if opts.Strict {
				return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidRecord, lineNo, line)
			}
			slog.Warn("Skipping malformed label line", "line", lineNo)
			continue
		}
		if len(labels) == numLabels {
			return nil, fmt.Errorf("%w: line %d: more than %d labels",
				ErrInvalidRecord, lineNo, numLabels)
		}
		labels = append(labels, Label{Item: rec[0], Worker: rec[1], Value: rec[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRecord, lineNo+1, err)
	}
	if len(labels) != numLabels {
		return nil, fmt.Errorf("%w: header declares %d labels, found %d",
			ErrInvalidRecord, numLabels, len(labels))
	}
	return NewDataset(numItems, numWorkers, labels)
}

// WriteDataset writes ds in the format read by ReadDataset.
func WriteDataset(w io.Writer, ds *Dataset) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %d %d\n", ds.NumItems, ds.NumWorkers, ds.NumLabels()); err != nil {
		return err
	}
	for _, l := range ds.Labels {
		if _, err := fmt.Fprintf(bw, "%d %d %d\n", l.Item, l.Worker, l.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// parseTriple reads the first three whitespace-separated integers of line.
func parseTriple(line string) ([3]int, bool) {
	var out [3]int
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return out, false
	}
	for k := range 3 {
		v, err := strconv.Atoi(fields[k])
		if err != nil {
			return out, false
		}
		out[k] = v
	}
	return out, true
}
