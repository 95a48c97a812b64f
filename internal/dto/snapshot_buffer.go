package dto

// BufferedSnapshot holds an encoded entry image before it is flushed to disk.
type BufferedSnapshot struct {
	RunID      string
	CustomerID int
	Counter    string
	At         float64 // seconds from stream start
	Data       []byte
}
