// Package protocol implements the JSON wire messages exchanged over the
// WebSocket connection.
package protocol

import "encoding/json"

// Type discriminates a wire message's "type" field.
type Type string

const (
	TypeInit        Type = "init"
	TypeInsert      Type = "insert"
	TypeDelete      Type = "delete"
	TypeReplace     Type = "replace"
	TypeInsertRows  Type = "insert_rows"
	TypeAcquireLock Type = "acquire_lock"
	TypeReleaseLock Type = "release_lock"
)

// CellPos addresses one (row, col) cell and marshals as a JSON 2-tuple,
// matching the wire format "cell":[row,col].
type CellPos struct {
	Row int32
	Col int32
}

// MarshalJSON renders the position as [row, col].
func (c CellPos) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int32{c.Row, c.Col})
}

// UnmarshalJSON parses a [row, col] 2-tuple.
func (c *CellPos) UnmarshalJSON(data []byte) error {
	var pair [2]int32
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

// CellView is one cell's contribution to an Init snapshot: its current
// text, and its lock owner if one holds the cell.
type CellView struct {
	Text    string  `json:"text"`
	OwnerID *uint64 `json:"owner_id,omitempty"`
}

// Insert is the insert{} message, sent by clients and rebroadcast by the
// server with ClientID rewritten to the authoritative sender.
type Insert struct {
	ClientID uint64  `json:"client_id"`
	Cell     CellPos `json:"cell"`
	Index    uint64  `json:"index"`
	Text     string  `json:"text"`
}

// Delete is the delete{} message.
type Delete struct {
	ClientID uint64  `json:"client_id"`
	Cell     CellPos `json:"cell"`
	Start    uint64  `json:"start"`
	End      uint64  `json:"end"`
}

// Replace is the replace{} message.
type Replace struct {
	ClientID uint64  `json:"client_id"`
	Cell     CellPos `json:"cell"`
	Start    uint64  `json:"start"`
	End      uint64  `json:"end"`
	Text     string  `json:"text"`
}

// InsertRows is the insert_rows{} message.
type InsertRows struct {
	ClientID       uint64 `json:"client_id"`
	InsertionIndex uint64 `json:"insertion_index"`
	NumRows        uint64 `json:"num_rows"`
}

// AcquireLock is the server-authored acquire_lock{} event.
type AcquireLock struct {
	ClientID uint64  `json:"client_id"`
	Cell     CellPos `json:"cell"`
}

// ReleaseLock is the server-authored release_lock{} event.
type ReleaseLock struct {
	Cell CellPos `json:"cell"`
}

// Init is the server-authored init{} snapshot sent once per connection.
type Init struct {
	ClientID uint64       `json:"client_id"`
	Table    [][]CellView `json:"table"`
}
