package types

// DocumentInfo describes the loaded document context.
type DocumentInfo struct {
	Source     string
	TotalPages int
	TextPages  int
	Length     int
}
