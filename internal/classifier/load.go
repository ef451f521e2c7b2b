package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadTable reads the CandleMasterCode table from masterPath and the
// per-asset signal tables from signalsPath (a JSON object keyed by asset
// id, §6.3) and builds a Table. Config errors are fatal at startup (§7).
func LoadTable(masterPath, signalsPath string) (*Table, error) {
	master, err := loadMasterCode(masterPath)
	if err != nil {
		return nil, err
	}
	signals, err := loadSignals(signalsPath)
	if err != nil {
		return nil, err
	}
	return NewTable(master, signals), nil
}

func loadMasterCode(path string) ([]CandleMasterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: reading CandleMasterCode file: %w", err)
	}
	var rows []CandleMasterEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("classifier: parsing CandleMasterCode file: %w", err)
	}
	return rows, nil
}

func loadSignals(path string) (map[string][]TradeSignalEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: reading signal table file: %w", err)
	}
	var signals map[string][]TradeSignalEntry
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil, fmt.Errorf("classifier: parsing signal table file: %w", err)
	}
	return signals, nil
}
