package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"fuelpanel/pkg/contracts/domain"
)

// PriceHeader is the header of raw price batch files used in tests.
var PriceHeader = []string{"date", "station_uuid", "diesel", "e5", "e10", "dieselchange", "e5change", "e10change"}

// BatchFixtures writes raw price batch files below a test directory.
type BatchFixtures struct {
	TestDataDir string
}

// NewBatchFixtures creates a new fixtures manager
func NewBatchFixtures(testDataDir string) *BatchFixtures {
	return &BatchFixtures{TestDataDir: testDataDir}
}

// PriceRow is one line of a raw batch file. Empty prices are written as
// empty cells.
type PriceRow struct {
	Date    string
	Station string
	Diesel  string
	E5      string
	E10     string
}

// WriteBatch writes a raw price csv at relPath and returns its full path.
func (f *BatchFixtures) WriteBatch(relPath string, rows ...PriceRow) (string, error) {
	var b strings.Builder
	b.WriteString(strings.Join(PriceHeader, ","))
	b.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,1,1,1\n", r.Date, r.Station, r.Diesel, r.E5, r.E10)
	}
	return f.WriteRaw(relPath, b.String())
}

// WriteRaw writes content verbatim at relPath and returns its full path.
func (f *BatchFixtures) WriteRaw(relPath, content string) (string, error) {
	path := filepath.Join(f.TestDataDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write batch file: %w", err)
	}
	return path, nil
}

// TwoDays writes two consecutive daily batches. Station B only reports on
// the first day, so its second day depends on carry-over.
func (f *BatchFixtures) TwoDays() ([]string, error) {
	first, err := f.WriteBatch("2014/06/2014-06-08-prices.csv",
		PriceRow{"2014-06-08 09:00:00+02", "A", "1.459", "1.599", "1.579"},
		PriceRow{"2014-06-08 12:00:00+02", "B", "1.409", "1.549", "1.529"},
		PriceRow{"2014-06-08 18:00:00+02", "A", "1.439", "1.589", "1.569"},
	)
	if err != nil {
		return nil, err
	}
	second, err := f.WriteBatch("2014/06/2014-06-09-prices.csv",
		PriceRow{"2014-06-09 08:00:00+02", "A", "1.449", "1.589", "1.559"},
		PriceRow{"2014-06-09 20:00:00+02", "A", "1.429", "1.579", "1.549"},
	)
	if err != nil {
		return nil, err
	}
	return []string{first, second}, nil
}

// Obs builds an observation with a raw timestamp and the given values.
func Obs(station, raw string, values map[string]float64) domain.Observation {
	return domain.Observation{StationID: station, RawTime: raw, Values: values}
}

// At builds an observation with a native timestamp.
func At(station string, ts time.Time, values map[string]float64) domain.Observation {
	return domain.Observation{StationID: station, Time: ts, Values: values}
}

// Berlin returns the Europe/Berlin location or panics.
func Berlin() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		panic(err)
	}
	return loc
}
