// Package vocab loads tagger label vocabularies and matches labels in a
// separator-insensitive normalized form.
package vocab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/menta2k/image-labeler/pkg/types"
)

// Category ids used by selected_tags.csv
const (
	csvGeneral   = 0
	csvCharacter = 4
	csvRating    = 9
)

// Vocabulary is the ordered label table of a tagger, partitioned by category
type Vocabulary struct {
	Names      []string
	Categories []types.Category

	General   []int
	Character []int
	Rating    []int
}

// Len returns the number of labels
func (v *Vocabulary) Len() int {
	return len(v.Names)
}

// Add appends a label and records its index in the matching partition
func (v *Vocabulary) Add(name string, category types.Category) int {
	idx := len(v.Names)
	v.Names = append(v.Names, name)
	v.Categories = append(v.Categories, category)
	switch category {
	case types.CategoryGeneral:
		v.General = append(v.General, idx)
	case types.CategoryCharacter:
		v.Character = append(v.Character, idx)
	case types.CategoryRating:
		v.Rating = append(v.Rating, idx)
	}
	return idx
}

// LoadFile reads a selected_tags.csv style vocabulary
func LoadFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a CSV vocabulary with a header naming the "name" column and a
// "category" (or "category_id") column.
func Load(r io.Reader) (*Vocabulary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("vocabulary is empty")
		}
		return nil, fmt.Errorf("read vocabulary header: %w", err)
	}
	nameCol, catCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name":
			nameCol = i
		case "category", "category_id":
			if catCol < 0 {
				catCol = i
			}
		}
	}
	if nameCol < 0 {
		return nil, errors.New("vocabulary header has no name column")
	}

	v := &Vocabulary{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read vocabulary line %d: %w", line, err)
		}
		if nameCol >= len(record) {
			return nil, fmt.Errorf("vocabulary line %d: missing name", line)
		}
		category := types.CategoryGeneral
		if catCol >= 0 && catCol < len(record) {
			id, err := strconv.Atoi(strings.TrimSpace(record[catCol]))
			if err != nil {
				return nil, fmt.Errorf("vocabulary line %d: bad category %q", line, record[catCol])
			}
			category = categoryFromID(id)
		}
		v.Add(strings.TrimSpace(record[nameCol]), category)
	}
	if v.Len() == 0 {
		return nil, errors.New("vocabulary has no labels")
	}
	return v, nil
}

func categoryFromID(id int) types.Category {
	switch id {
	case csvGeneral:
		return types.CategoryGeneral
	case csvCharacter:
		return types.CategoryCharacter
	case csvRating:
		return types.CategoryRating
	default:
		return types.CategoryOther
	}
}
