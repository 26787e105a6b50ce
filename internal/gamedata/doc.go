// Package gamedata extracts reference data from the game client's
// master.mdb for plugin authors: the character roster and the single
// mode rival race table. The database is opened strictly read-only; the
// launcher never writes game files.
package gamedata
