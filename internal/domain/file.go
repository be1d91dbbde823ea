package domain

// File is one entry in a session's file list. Index is the position within
// the list and stays stable for the session's lifetime.
type File struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Length int64  `json:"length"`
}
