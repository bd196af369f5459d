// Package dataio converts raw label dumps with arbitrary integer ids into
// the 0-indexed label file format and keeps the id mapping alongside.
package dataio

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/cubam/model"
)

// Mapping maps original ids to normalized 0-based indices.
type Mapping struct {
	Image  map[int]int `yaml:"image"`
	Worker map[int]int `yaml:"worker"`
}

// Inverse returns normalized index to original id tables.
func (m *Mapping) Inverse() (images, workers []int) {
	images = make([]int, len(m.Image))
	for id, idx := range m.Image {
		images[idx] = id
	}
	workers = make([]int, len(m.Worker))
	for id, idx := range m.Worker {
		workers[idx] = id
	}
	return images, workers
}

// Normalize reads "image worker label" lines with arbitrary integer ids.
// Ids are numbered in order of first appearance. Blank lines and lines
// starting with '#' are ignored; skipFirst drops a header line.
func Normalize(r io.Reader, skipFirst bool) (*model.Dataset, *Mapping, error) {
	m := &Mapping{Image: make(map[int]int), Worker: make(map[int]int)}
	var labels []model.Label

	sc := bufio.NewScanner(r)
	lineNo := 0
	if skipFirst && sc.Scan() {
		lineNo++
	}
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		img, wkr, val, err := parseLine(line)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %w", model.ErrInvalidRecord, lineNo, err)
		}
		labels = append(labels, model.Label{
			Item:   index(m.Image, img),
			Worker: index(m.Worker, wkr),
			Value:  val,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: line %d: %w", model.ErrInvalidRecord, lineNo+1, err)
	}

	ds, err := model.NewDataset(len(m.Image), len(m.Worker), labels)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Normalized labels", "images", ds.NumItems, "workers", ds.NumWorkers, "labels", ds.NumLabels())
	return ds, m, nil
}

// NormalizeFile normalizes in and writes {prefix}.txt and
// {prefix}-mapping.yaml.
func NormalizeFile(in, prefix string, skipFirst bool) (*model.Dataset, error) {
	f, err := os.Open(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	defer f.Close()

	ds, m, err := Normalize(f, skipFirst)
	if err != nil {
		return nil, err
	}
	if err := writeFile(prefix+".txt", func(w io.Writer) error { return model.WriteDataset(w, ds) }); err != nil {
		return nil, err
	}
	if err := writeFile(MappingPath(prefix), func(w io.Writer) error { return WriteMapping(w, m) }); err != nil {
		return nil, err
	}
	return ds, nil
}

// MappingPath returns the mapping file written next to {prefix}.txt.
func MappingPath(prefix string) string {
	return prefix + "-mapping.yaml"
}

// WriteMapping encodes m as YAML.
func WriteMapping(w io.Writer, m *Mapping) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// ReadMapping loads a mapping file written by WriteMapping.
func ReadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: mapping: %w", model.ErrInvalidRecord, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate checks that both tables are bijections onto 0..n-1.
func (m *Mapping) validate() error {
	for name, tbl := range map[string]map[int]int{"image": m.Image, "worker": m.Worker} {
		seen := make([]bool, len(tbl))
		for id, idx := range tbl {
			if idx < 0 || idx >= len(tbl) || seen[idx] {
				return fmt.Errorf("%w: %s mapping %d -> %d", model.ErrInvalidRecord, name, id, idx)
			}
			seen[idx] = true
		}
	}
	return nil
}

func index(tbl map[int]int, id int) int {
	idx, ok := tbl[id]
	if !ok {
		idx = len(tbl)
		tbl[id] = idx
	}
	return idx
}

func parseLine(line string) (img, wkr, val int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("want 3 fields, got %d", len(fields))
	}
	var vals [3]int
	for k, f := range fields {
		if vals[k], err = strconv.Atoi(f); err != nil {
			return 0, 0, 0, err
		}
	}
	return vals[0], vals[1], vals[2], nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
