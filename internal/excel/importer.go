// Package excel moves cards and review history in and out of spreadsheets.
package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/cardsched/internal/review"
	"github.com/example/cardsched/pkg/models"
	"github.com/xuri/excelize/v2"
)

// CardCreator is the part of the review service used by the importer
type CardCreator interface {
	DeckByName(ctx context.Context, ownerID int64, name string) (*models.Deck, error)
	ListCards(ctx context.Context, deckID int64) ([]models.Card, error)
	CreateCard(ctx context.Context, in review.NewCard) (*models.Card, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath    string // Path to the Excel or CSV file
	OwnerID     int64  // User receiving the cards
	FrontColumn string // Column with the prompt
	BackColumn  string // Column with the answer
	DeckColumn  string // Column with the deck name, optional
	SheetName   string // Sheet to import; first sheet when empty
	StartRow    int    // The row to start importing from (1-based index)
	DefaultDeck string // Deck for rows before any deck header
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		FrontColumn: "A",
		BackColumn:  "B",
		DeckColumn:  "C",
		StartRow:    2, // By default, start from the second row (skip header)
		DefaultDeck: "Default",
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// ImportCards imports cards from an Excel or CSV file. A row with only a
// front value starts a new deck for the rows below it.
func ImportCards(ctx context.Context, cfg ImportConfig, svc CardCreator) (*ImportResult, error) {
	if cfg.StartRow < 1 {
		cfg.StartRow = 1
	}
	if cfg.DefaultDeck == "" {
		cfg.DefaultDeck = DefaultImportConfig().DefaultDeck
	}

	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(cfg.FilePath)) == ".csv" {
		rows, err = readCSV(cfg.FilePath)
	} else {
		rows, err = readExcel(cfg.FilePath, cfg.SheetName)
	}
	if err != nil {
		return nil, err
	}

	imp := &importer{
		svc:    svc,
		cfg:    cfg,
		result: &ImportResult{Errors: make([]string, 0)},
		decks:  make(map[string]*deckState),
	}
	currentDeck := cfg.DefaultDeck
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow {
			continue
		}
		if err := ctx.Err(); err != nil {
			return imp.result, err
		}

		front := cell(row, cfg.FrontColumn)
		back := cell(row, cfg.BackColumn)
		deck := cell(row, cfg.DeckColumn)
		if front == "" && back == "" && deck == "" {
			continue
		}
		// Deck header row, e.g. "Motion,,"
		if front != "" && back == "" && deck == "" {
			currentDeck = strings.Trim(front, "\"")
			continue
		}
		if deck == "" {
			deck = currentDeck
		}

		imp.result.TotalProcessed++
		if err := imp.add(ctx, front, back, deck); err != nil {
			imp.result.Errors = append(imp.result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}
	return imp.result, nil
}

type deckState struct {
	deck   *models.Deck
	fronts map[string]bool
}

type importer struct {
	svc    CardCreator
	cfg    ImportConfig
	result *ImportResult
	decks  map[string]*deckState
}

// add creates one card unless its deck already has a card with the same front
func (imp *importer) add(ctx context.Context, front, back, deckName string) error {
	if front == "" {
		return errors.New("front cannot be empty")
	}
	if back == "" {
		return errors.New("back cannot be empty")
	}

	ds, err := imp.deck(ctx, deckName)
	if err != nil {
		return err
	}
	key := strings.ToLower(front)
	if ds.fronts[key] {
		imp.result.Skipped++
		return nil
	}

	if _, err := imp.svc.CreateCard(ctx, review.NewCard{
		OwnerID: imp.cfg.OwnerID,
		DeckID:  ds.deck.ID,
		Front:   front,
		Back:    back,
	}); err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	ds.fronts[key] = true
	imp.result.Created++
	return nil
}

func (imp *importer) deck(ctx context.Context, name string) (*deckState, error) {
	key := strings.ToLower(name)
	if ds, ok := imp.decks[key]; ok {
		return ds, nil
	}

	deck, err := imp.svc.DeckByName(ctx, imp.cfg.OwnerID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to process deck: %w", err)
	}
	cards, err := imp.svc.ListCards(ctx, deck.ID)
	if err != nil {
		return nil, err
	}
	ds := &deckState{deck: deck, fronts: make(map[string]bool, len(cards))}
	for _, c := range cards {
		ds.fronts[strings.ToLower(c.Front)] = true
	}
	imp.decks[key] = ds
	return ds, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cell returns the trimmed value of column in row, or "" when absent
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
