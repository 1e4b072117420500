package storage

import "time"

// TurnRecord is one completed question/answer turn of a session.
type TurnRecord struct {
	ID                 string // UUID
	SessionID          string
	Seq                int // Position of the turn within the session (starts at 1)
	Question           string
	StandaloneQuestion string
	Answer             string
	Sources            int // Number of chunks the answer was grounded on
	CreatedAt          time.Time
}

// CorpusRecord describes a document set processed by a session.
type CorpusRecord struct {
	ID         string // UUID
	SessionID  string
	Documents  int
	Characters int
	Chunks     int
	CreatedAt  time.Time
}
