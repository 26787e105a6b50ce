package gamedata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteCharactersCSV writes the roster as CSV with a header row.
func WriteCharactersCSV(w io.Writer, characters []Character) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"id", "name", "kana", "cast_name", "nickname",
		"birth_year", "birth_month", "birth_day", "gender",
	}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, c := range characters {
		record := []string{
			strconv.Itoa(c.ID),
			c.Name,
			c.Kana,
			c.CastName,
			c.Nickname,
			strconv.Itoa(c.Birthday.Year),
			strconv.Itoa(c.Birthday.Month),
			strconv.Itoa(c.Birthday.Day),
			c.Gender.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write character row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRivalRacesCSV writes the rival race table as CSV. Character ids
// are joined with ";" so each race stays one row.
func WriteRivalRacesCSV(w io.Writer, races []RivalRace) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"turn", "name", "character_ids"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range races {
		ids := make([]string, len(r.CharacterIDs))
		for i, id := range r.CharacterIDs {
			ids[i] = strconv.Itoa(id)
		}
		record := []string{
			strconv.Itoa(r.Turn),
			r.Name,
			strings.Join(ids, ";"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write rival race row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
