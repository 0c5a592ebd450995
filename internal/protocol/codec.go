package protocol

import (
	"encoding/json"
	"fmt"
)

// Decoded is the result of decoding one inbound client frame. Only one of
// the operation pointers is set, matching Type. Client-originated frames
// with a server-only type (init/acquire_lock/release_lock) or an unknown
// type decode successfully here but carry no operation; the caller
// silently ignores them.
type Decoded struct {
	Type       Type
	Insert     *Insert
	Delete     *Delete
	Replace    *Replace
	InsertRows *InsertRows
}

type typeHeader struct {
	Type Type `json:"type"`
}

// Decode parses one inbound text frame. A malformed frame (not JSON, or
// missing/empty "type") is reported as an error; the caller is expected
// to drop it silently rather than surface it to the client.
func Decode(raw []byte) (*Decoded, error) {
	var head typeHeader
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode message header: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("decode message header: missing type")
	}

	d := &Decoded{Type: head.Type}
	switch head.Type {
	case TypeInsert:
		var m Insert
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode insert: %w", err)
		}
		d.Insert = &m
	case TypeDelete:
		var m Delete
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode delete: %w", err)
		}
		d.Delete = &m
	case TypeReplace:
		var m Replace
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode replace: %w", err)
		}
		d.Replace = &m
	case TypeInsertRows:
		var m InsertRows
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode insert_rows: %w", err)
		}
		d.InsertRows = &m
	}
	// Other types (init/acquire_lock/release_lock, or anything unknown)
	// decode with no operation set; dispatch() treats that as a no-op.
	return d, nil
}

type insertWire struct {
	Type     Type    `json:"type"`
	ClientID uint64  `json:"client_id"`
	Cell     CellPos `json:"cell"`
	Index    uint64  `json:"index"`
	Text     string  `json:"text"`
}

// EncodeInsert renders an outbound insert event with the authoritative
// client id.
func EncodeInsert(clientID uint64, cell CellPos, index uint64, text string) ([]byte, error) {
	return json.Marshal(insertWire{Type: TypeInsert, ClientID: clientID, Cell: cell, Index: index, Text: text})
}

type deleteWire struct {
	Type     Type    `json:"type"`
	ClientID uint64  `json:"client_id"`
	Cell     CellPos `json:"cell"`
	Start    uint64  `json:"start"`
	End      uint64  `json:"end"`
}

// EncodeDelete renders an outbound delete event.
func EncodeDelete(clientID uint64, cell CellPos, start, end uint64) ([]byte, error) {
	return json.Marshal(deleteWire{Type: TypeDelete, ClientID: clientID, Cell: cell, Start: start, End: end})
}

type replaceWire struct {
	Type     Type    `json:"type"`
	ClientID uint64  `json:"client_id"`
	Cell     CellPos `json:"cell"`
	Start    uint64  `json:"start"`
	End      uint64  `json:"end"`
	Text     string  `json:"text"`
}

// EncodeReplace renders an outbound replace event.
func EncodeReplace(clientID uint64, cell CellPos, start, end uint64, text string) ([]byte, error) {
	return json.Marshal(replaceWire{Type: TypeReplace, ClientID: clientID, Cell: cell, Start: start, End: end, Text: text})
}

type insertRowsWire struct {
	Type           Type   `json:"type"`
	ClientID       uint64 `json:"client_id"`
	InsertionIndex uint64 `json:"insertion_index"`
	NumRows        uint64 `json:"num_rows"`
}

// EncodeInsertRows renders an outbound insert_rows event.
func EncodeInsertRows(clientID uint64, insertionIndex, numRows uint64) ([]byte, error) {
	return json.Marshal(insertRowsWire{Type: TypeInsertRows, ClientID: clientID, InsertionIndex: insertionIndex, NumRows: numRows})
}

type acquireLockWire struct {
	Type     Type    `json:"type"`
	ClientID uint64  `json:"client_id"`
	Cell     CellPos `json:"cell"`
}

// EncodeAcquireLock renders the server-authored acquire_lock event.
func EncodeAcquireLock(clientID uint64, cell CellPos) ([]byte, error) {
	return json.Marshal(acquireLockWire{Type: TypeAcquireLock, ClientID: clientID, Cell: cell})
}

type releaseLockWire struct {
	Type Type    `json:"type"`
	Cell CellPos `json:"cell"`
}

// EncodeReleaseLock renders the server-authored release_lock event.
func EncodeReleaseLock(cell CellPos) ([]byte, error) {
	return json.Marshal(releaseLockWire{Type: TypeReleaseLock, Cell: cell})
}

type initWire struct {
	Type     Type         `json:"type"`
	ClientID uint64       `json:"client_id"`
	Table    [][]CellView `json:"table"`
}

// EncodeInit renders the one-time snapshot sent on connection attach.
func EncodeInit(clientID uint64, table [][]CellView) ([]byte, error) {
	return json.Marshal(initWire{Type: TypeInit, ClientID: clientID, Table: table})
}
