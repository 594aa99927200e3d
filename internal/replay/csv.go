// Package replay turns a CSV file of temperature readings into the same
// raw payload stream a live feed produces, looping over the file forever.
package replay

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"smokesignal/internal/logger"
	"smokesignal/internal/metrics"
)

// Replay errors
var (
	ErrMissingColumns = errors.New("data file missing required columns")
	ErrBadRow         = errors.New("row has non-numeric temperature")
)

// requiredColumns are the CSV headers a data file must carry.
var requiredColumns = []string{"timestamp", "temperature"}

// Source lazily yields one JSON payload per CSV row. When the file is
// exhausted it rewinds and starts over.
type Source struct {
	path    string
	file    *os.File
	reader  *csv.Reader
	tsIdx   int
	tempIdx int
	log     zerolog.Logger
}

// payload is the wire shape the decoder expects.
type payload struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
}

// Open validates the data file and positions the source at the first row.
// A missing file or missing required columns are fatal.
func Open(path string) (*Source, error) {
	s := &Source{
		path: path,
		log:  logger.WithComponent("replay"),
	}
	if err := s.rewind(); err != nil {
		return nil, err
	}
	s.log.Info().Str("path", path).Msg("data file opened")
	return s, nil
}

// rewind (re)opens the file and consumes the header row.
func (s *Source) rewind() error {
	if s.file != nil {
		s.file.Close()
	}

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		file.Close()
		return fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			file.Close()
			return fmt.Errorf("%w: %s", ErrMissingColumns, col)
		}
	}

	s.file = file
	s.reader = reader
	s.tsIdx = idx["timestamp"]
	s.tempIdx = idx["temperature"]
	return nil
}

// Next returns the next row as a raw JSON payload, rewinding at EOF so
// the stream never ends.
func (s *Source) Next() ([]byte, error) {
	for {
		row, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.log.Info().Str("path", s.path).Msg("data file exhausted, rewinding")
			if err := s.rewind(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		temp, err := strconv.ParseFloat(row[s.tempIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadRow, row[s.tempIdx])
		}

		raw, err := json.Marshal(payload{
			Timestamp:   row[s.tsIdx],
			Temperature: temp,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}

		metrics.ReplayRowsTotal.Inc()
		return raw, nil
	}
}

// Close closes the underlying file.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
