// Package protocol defines the JSON messages exchanged with editing
// clients and maps inbound operations onto document store calls.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"contract-editor/pkg/document"
)

// Server→client message types.
const (
	TypeInit        = "INIT"
	TypeDataUpdate  = "DATA_UPDATE"
	TypeClientCount = "CLIENT_COUNT"
	TypeError       = "ERROR"
)

// ErrDecode marks an inbound message that could not be parsed.
var ErrDecode = errors.New("malformed message")

// envelope is the superset of all inbound message fields; which ones are
// meaningful depends on Type.
type envelope struct {
	Type            string                `json:"type"`
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	ParentID        string                `json:"parentId"`
	NewParentID     string                `json:"newParentId"`
	CollectionID    string                `json:"collectionId"`
	NewCollectionID string                `json:"newCollectionId"`
	Kind            string                `json:"kind"`
	Fields          []document.Field      `json:"fields"`
	EnumValues      []string              `json:"enumValues"`
	Path            string                `json:"path"`
	Method          string                `json:"method"`
	MinRole         string                `json:"minRole"`
	QueryParams     []document.QueryParam `json:"queryParams"`
	RequestBody     string                `json:"requestBody"`
	ResponseBody    string                `json:"responseBody"`
	Description     string                `json:"description"`
	OrderedIDs      []string              `json:"orderedIds"`
	Updates         json.RawMessage       `json:"updates"`
	Data            json.RawMessage       `json:"data"`
}

// Dispatch decodes one inbound client message and applies it to the store.
// It returns the updated document on success, (nil, nil) for message types
// it does not recognize, and an error when decoding or the operation
// fails. JSON null and missing id fields both decode to "", which the
// store treats as "root level" where that is meaningful.
func Dispatch(store *document.Store, raw []byte) (*document.Document, error) {
	var msg envelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch msg.Type {
	case "CREATE_COLLECTION":
		return store.CreateCollection(msg.ParentID, msg.Name)
	case "RENAME_COLLECTION":
		return store.RenameCollection(msg.ID, msg.Name)
	case "DELETE_COLLECTION":
		return store.DeleteCollection(msg.ID)
	case "MOVE_COLLECTION":
		return store.MoveCollection(msg.ID, msg.NewParentID)

	case "CREATE_OBJECT":
		return store.CreateObject(msg.CollectionID, msg.Name, msg.Kind, msg.Fields, msg.EnumValues)
	case "UPDATE_OBJECT":
		var updates document.ObjectUpdate
		if err := json.Unmarshal(msg.Updates, &updates); err != nil {
			return nil, fmt.Errorf("%w: object updates: %v", ErrDecode, err)
		}
		return store.UpdateObject(msg.ID, updates)
	case "DELETE_OBJECT":
		return store.DeleteObject(msg.ID)
	case "MOVE_OBJECT":
		return store.MoveObject(msg.ID, msg.NewCollectionID)

	case "CREATE_ROLE":
		return store.CreateRole(msg.Name)
	case "RENAME_ROLE":
		return store.RenameRole(msg.ID, msg.Name)
	case "DELETE_ROLE":
		return store.DeleteRole(msg.ID)
	case "REORDER_ROLES":
		return store.ReorderRoles(msg.OrderedIDs)

	case "CREATE_ENDPOINT":
		return store.CreateEndpoint(document.EndpointSpec{
			CollectionID: msg.CollectionID,
			Name:         msg.Name,
			Path:         msg.Path,
			Method:       msg.Method,
			MinRole:      msg.MinRole,
			QueryParams:  msg.QueryParams,
			RequestBody:  msg.RequestBody,
			ResponseBody: msg.ResponseBody,
			Description:  msg.Description,
		})
	case "UPDATE_ENDPOINT":
		var updates document.EndpointUpdate
		if err := json.Unmarshal(msg.Updates, &updates); err != nil {
			return nil, fmt.Errorf("%w: endpoint updates: %v", ErrDecode, err)
		}
		return store.UpdateEndpoint(msg.ID, updates)
	case "DELETE_ENDPOINT":
		return store.DeleteEndpoint(msg.ID)
	case "MOVE_ENDPOINT":
		return store.MoveEndpoint(msg.ID, msg.NewCollectionID)

	case "IMPORT_DATA":
		doc, err := document.Parse(msg.Data)
		if err != nil {
			return nil, err
		}
		return store.Replace(doc), nil
	}

	// Unrecognized types are ignored; the caller logs them.
	return nil, nil
}

// Init builds the INIT message carrying an already-serialized document.
func Init(doc json.RawMessage) ([]byte, error) {
	return json.Marshal(struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{TypeInit, doc})
}

// DataUpdate builds the DATA_UPDATE broadcast carrying an
// already-serialized document.
func DataUpdate(doc json.RawMessage) ([]byte, error) {
	return json.Marshal(struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{TypeDataUpdate, doc})
}

// ClientCount builds the participant-count broadcast.
func ClientCount(count int) []byte {
	data, _ := json.Marshal(struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	}{TypeClientCount, count})
	return data
}

// Error builds the error message sent back to the originating connection.
func Error(err error) []byte {
	data, _ := json.Marshal(struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}{TypeError, err.Error()})
	return data
}
