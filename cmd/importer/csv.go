package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/models"
)

// parseStations reads name,code rows. A leading header row is skipped.
// Every row is validated; the first bad row fails the whole file.
func parseStations(r io.Reader) ([]models.StationImport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var (
		rows      []models.StationImport
		seenCodes = map[codes.StationCode]int{}
		seenNames = map[string]int{}
		line      int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line++

		name := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		rawCode := strings.TrimSpace(record[1])

		if line == 1 && strings.EqualFold(name, "name") && strings.EqualFold(rawCode, "code") {
			continue
		}

		if err := codes.ValidateStationName(name); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		code, err := codes.ParseStationCode(rawCode)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if prev, ok := seenCodes[code]; ok {
			return nil, fmt.Errorf("line %d: code %s already used on line %d", line, code, prev)
		}
		if prev, ok := seenNames[name]; ok {
			return nil, fmt.Errorf("line %d: name %q already used on line %d", line, name, prev)
		}
		seenCodes[code] = line
		seenNames[name] = line

		rows = append(rows, models.StationImport{Name: name, Code: code})
	}

	return rows, nil
}
