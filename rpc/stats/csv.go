package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WriteCSV exports the collected per-call samples to a CSV file, one row
// per metadata-carrying call
func (a *Accumulator) WriteCSV(csvPath string) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Server", "StartTimeUS", "EndTimeUS", "LatencyUS"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, s := range a.samples {
		row := []string{
			s.Server,
			strconv.FormatInt(s.StartUS, 10),
			strconv.FormatInt(s.EndUS, 10),
			strconv.FormatInt(s.LatencyUS(), 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
