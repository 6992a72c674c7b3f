package exporter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"fuelpanel/pkg/contracts/domain"
)

// memFile is a write-only in-memory parquet target
type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// compressionCodec maps a configured compression name to its codec
func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(name) {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// panelSchema describes the panel as flat optional columns. Keys are UTF8
// strings with the timestamp in domain.TimeLayout; values are doubles.
func panelSchema(panel *domain.Panel, keys KeyColumns) []string {
	md := []string{
		fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", keys.Station),
		fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", keys.Time),
	}
	for _, col := range panel.Columns {
		md = append(md, fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", col))
	}
	return md
}

// EncodePanelParquet encodes a panel as a parquet file. Missing values are
// stored as nulls.
func EncodePanelParquet(panel *domain.Panel, keys KeyColumns, compression string) ([]byte, error) {
	mem := newMemFile()
	pw, err := writer.NewCSVWriter(panelSchema(panel, keys), mem, 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for i, row := range panel.Rows {
		rec := make([]interface{}, len(row.Values)+2)
		rec[0] = row.Station
		rec[1] = formatTime(row.Time)
		for j, v := range row.Values {
			if domain.IsMissing(v) {
				continue
			}
			rec[j+2] = v
		}
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write panel row %d: %w", i, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize panel parquet: %w", err)
	}
	return mem.Bytes(), nil
}
