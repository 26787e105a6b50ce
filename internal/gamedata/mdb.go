package gamedata

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/mmr-tortoise/paddock/internal/model"
)

// Gender is the chara_data sex column.
type Gender int

const (
	GenderUnknown Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

// String returns a readable gender label.
func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

// Birthday is a character's in-game birth date.
type Birthday struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Character is one chara_data row joined with its text_data names.
type Character struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Kana     string   `json:"kana"`
	CastName string   `json:"castName"`
	Nickname string   `json:"nickname"`
	Birthday Birthday `json:"birthday"`
	Gender   Gender   `json:"gender"`
}

// RivalRace is one deduplicated single mode rival race: the turn it
// occurs on, the race name, and every character involved.
type RivalRace struct {
	Turn         int    `json:"turn"`
	Name         string `json:"name"`
	CharacterIDs []int  `json:"characterIds"`
}

// DefaultMasterDBPath returns the game client's master.mdb location. The
// client stores it under the "AppData/LocalLow" tree, which the original
// tooling reaches by appending "Low" directly to %LocalAppData% — kept
// verbatim so both resolve the same file.
func DefaultMasterDBPath() string {
	return os.Getenv("LocalAppData") + "Low/cygames/umamusume/master/master.mdb"
}

// Open opens a master.mdb read-only. The immutable flag skips SQLite's
// locking so extraction works even while the game client holds the file.
func Open(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("master.mdb not found at %s; is the game client installed?", path),
			err,
		)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&immutable=1", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open master.mdb: %w", err)
	}
	return db, nil
}

// charactersQuery joins chara_data with the four text_data name
// categories: 6 name, 170 kana, 182 cast name, 7 nickname.
const charactersQuery = `
SELECT
  t1.id,
  COALESCE(t2.text, ''),
  COALESCE(t3.text, ''),
  COALESCE(t4.text, ''),
  COALESCE(t5.text, ''),
  t1.birth_year,
  t1.birth_month,
  t1.birth_day,
  t1.sex
  FROM chara_data AS t1
  LEFT JOIN text_data AS t2 ON t2.category = 6 AND t2."index" = t1.id
  LEFT JOIN text_data AS t3 ON t3.category = 170 AND t3."index" = t1.id
  LEFT JOIN text_data AS t4 ON t4.category = 182 AND t4."index" = t1.id
  LEFT JOIN text_data AS t5 ON t5.category = 7 AND t5."index" = t1.id
`

// Characters reads the character roster.
func Characters(ctx context.Context, db *sql.DB) ([]Character, error) {
	rows, err := db.QueryContext(ctx, charactersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	defer rows.Close()

	var characters []Character
	for rows.Next() {
		var c Character
		var gender int
		if err := rows.Scan(&c.ID, &c.Name, &c.Kana, &c.CastName, &c.Nickname,
			&c.Birthday.Year, &c.Birthday.Month, &c.Birthday.Day, &gender); err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		c.Gender = Gender(gender)
		characters = append(characters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read characters: %w", err)
	}
	return characters, nil
}

// rivalRacesQuery lists every rival entry with its race name (text_data
// category 28 via the program's race instance).
const rivalRacesQuery = `
SELECT
  t1.turn,
  COALESCE(t3.text, '') AS name,
  t1.chara_id,
  t1.race_program_id
  FROM single_mode_rival AS t1
  LEFT JOIN single_mode_program AS t2 ON t2.id = t1.race_program_id
  LEFT JOIN text_data AS t3 ON t3.category = 28 AND t3."index" = t2.race_instance_id
  ORDER BY t1.turn, t3.text
`

// rivalCharactersQuery collects both sides of every rival pairing for
// one (character, turn, program) tuple.
const rivalCharactersQuery = `
SELECT
  t1.chara_id,
  t1.rival_chara_id
  FROM single_mode_rival AS t1
  WHERE (t1.chara_id = ? OR t1.rival_chara_id = ?) AND t1.turn = ? AND t1.race_program_id = ?
`

// RivalRaces reads the deduplicated single mode rival race table. Rival
// entries are pairwise in the database; each race is expanded to its
// full character set, and races that come out identical (same turn,
// name, and characters) collapse to one row.
func RivalRaces(ctx context.Context, db *sql.DB) ([]RivalRace, error) {
	rows, err := db.QueryContext(ctx, rivalRacesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query rival races: %w", err)
	}
	defer rows.Close()

	type entry struct {
		turn      int
		name      string
		charaID   int
		programID int
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.turn, &e.name, &e.charaID, &e.programID); err != nil {
			return nil, fmt.Errorf("failed to scan rival race: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rival races: %w", err)
	}

	seen := make(map[string]bool)
	var races []RivalRace
	for _, e := range entries {
		ids, err := rivalRaceCharacters(ctx, db, e.charaID, e.turn, e.programID)
		if err != nil {
			return nil, err
		}
		race := RivalRace{Turn: e.turn, Name: e.name, CharacterIDs: ids}
		key := race.dedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		races = append(races, race)
	}
	return races, nil
}

// rivalRaceCharacters returns the sorted character-id set of one race.
func rivalRaceCharacters(ctx context.Context, db *sql.DB, charaID, turn, programID int) ([]int, error) {
	rows, err := db.QueryContext(ctx, rivalCharactersQuery, charaID, charaID, turn, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rival race characters: %w", err)
	}
	defer rows.Close()

	set := make(map[int]bool)
	for rows.Next() {
		var a, b int
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("failed to scan rival pairing: %w", err)
		}
		set[a] = true
		set[b] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rival pairings: %w", err)
	}

	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// dedupeKey flattens a race into a comparable string.
func (r RivalRace) dedupeKey() string {
	return fmt.Sprintf("%d|%s|%v", r.Turn, r.Name, r.CharacterIDs)
}
