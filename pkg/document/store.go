package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Store owns one Document and is the only sanctioned way to mutate it. It
// guarantees that a failed operation leaves the document untouched, that
// deleting a collection cascades to the objects and endpoints it owned, and
// that role order stays a total order.
//
// A Store is not safe for concurrent use. The owning room holds its lock
// across one mutation-plus-broadcast step, which also fixes the order in
// which subscribers observe updates.
type Store struct {
	doc *Document
}

// NewStore returns a store holding an empty document.
func NewStore() *Store {
	return &Store{doc: NewDocument()}
}

// NewStoreWith returns a store holding the given document, e.g. one loaded
// from the persistence gateway.
func NewStoreWith(doc *Document) *Store {
	if doc == nil {
		doc = NewDocument()
	}
	return &Store{doc: doc}
}

// Document returns the store's current document.
func (s *Store) Document() *Document {
	return s.doc
}

// Snapshot serializes the current document.
func (s *Store) Snapshot() ([]byte, error) {
	return json.Marshal(s.doc)
}

// normalizeName trims the name and collapses internal whitespace runs to
// single spaces.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// CreateCollection adds a collection under parentID, or at the root when
// parentID is empty.
func (s *Store) CreateCollection(parentID, name string) (*Document, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil, fmt.Errorf("collection name: %w", ErrInvalidName)
	}
	if err := s.doc.Collections.Insert(parentID, uuid.New().String(), normalized); err != nil {
		return nil, err
	}
	return s.doc, nil
}

// RenameCollection renames an existing collection. Renaming an absent id
// succeeds without effect.
func (s *Store) RenameCollection(id, name string) (*Document, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil, fmt.Errorf("collection name: %w", ErrInvalidName)
	}
	s.doc.Collections.Rename(id, normalized)
	return s.doc, nil
}

// DeleteCollection removes the collection subtree rooted at id together
// with every object and endpoint owned by any collection in that subtree.
// The three removals land as one atomic update.
func (s *Store) DeleteCollection(id string) (*Document, error) {
	if id == "" {
		return nil, fmt.Errorf("missing collection id: %w", ErrInvalidOperation)
	}
	doomed := s.doc.Collections.SubtreeIDs(id)

	objects := make([]ObjectNode, 0, len(s.doc.Objects))
	for _, obj := range s.doc.Objects {
		if _, gone := doomed[obj.CollectionID]; !gone {
			objects = append(objects, obj)
		}
	}
	endpoints := make([]EndpointNode, 0, len(s.doc.Endpoints))
	for _, ep := range s.doc.Endpoints {
		if _, gone := doomed[ep.CollectionID]; !gone {
			endpoints = append(endpoints, ep)
		}
	}

	s.doc.Objects = objects
	s.doc.Endpoints = endpoints
	s.doc.Collections.DeleteSubtree(id)
	return s.doc, nil
}

// MoveCollection reparents a collection subtree.
func (s *Store) MoveCollection(id, newParentID string) (*Document, error) {
	if err := s.doc.Collections.Move(id, newParentID); err != nil {
		return nil, err
	}
	return s.doc, nil
}

// CreateObject adds an object definition to a collection. Fresh ids are
// assigned to the object and every field; enum values are kept only for
// enums.
func (s *Store) CreateObject(collectionID, name, kind string, fields []Field, enumValues []string) (*Document, error) {
	if kind == "" {
		kind = KindInterface
	}
	obj := ObjectNode{
		ID:           uuid.New().String(),
		Name:         normalizeName(name),
		CollectionID: collectionID,
		Kind:         kind,
		Fields:       make([]Field, 0, len(fields)),
	}
	for _, f := range fields {
		obj.Fields = append(obj.Fields, Field{
			ID:       uuid.New().String(),
			Name:     normalizeName(f.Name),
			Type:     f.Type,
			Required: f.Required,
		})
	}
	if kind == KindEnum {
		obj.EnumValues = enumValues
	}
	s.doc.Objects = append(s.doc.Objects, obj)
	return s.doc, nil
}

// ObjectUpdate is a partial update to an object. Nil fields are left
// unchanged; the object id is immutable.
type ObjectUpdate struct {
	Name         *string   `json:"name,omitempty"`
	CollectionID *string   `json:"collectionId,omitempty"`
	Kind         *string   `json:"kind,omitempty"`
	Fields       *[]Field  `json:"fields,omitempty"`
	EnumValues   *[]string `json:"enumValues,omitempty"`
}

// UpdateObject merges a partial update into an existing object.
func (s *Store) UpdateObject(id string, updates ObjectUpdate) (*Document, error) {
	idx := s.objectIndex(id)
	if idx < 0 {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	obj := &s.doc.Objects[idx]
	if updates.Name != nil {
		obj.Name = normalizeName(*updates.Name)
	}
	if updates.CollectionID != nil {
		obj.CollectionID = *updates.CollectionID
	}
	if updates.Kind != nil {
		obj.Kind = *updates.Kind
	}
	if updates.Fields != nil {
		fields := make([]Field, 0, len(*updates.Fields))
		for _, f := range *updates.Fields {
			if f.ID == "" {
				f.ID = uuid.New().String()
			}
			f.Name = normalizeName(f.Name)
			fields = append(fields, f)
		}
		obj.Fields = fields
	}
	if updates.EnumValues != nil {
		obj.EnumValues = *updates.EnumValues
	}
	return s.doc, nil
}

// DeleteObject removes an object. Deleting an absent id succeeds.
func (s *Store) DeleteObject(id string) (*Document, error) {
	objects := make([]ObjectNode, 0, len(s.doc.Objects))
	for _, obj := range s.doc.Objects {
		if obj.ID != id {
			objects = append(objects, obj)
		}
	}
	s.doc.Objects = objects
	return s.doc, nil
}

// MoveObject reassigns an object to another collection. An empty
// newCollectionID moves it to the root.
func (s *Store) MoveObject(id, newCollectionID string) (*Document, error) {
	idx := s.objectIndex(id)
	if idx < 0 {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	s.doc.Objects[idx].CollectionID = newCollectionID
	return s.doc, nil
}

func (s *Store) objectIndex(id string) int {
	for i, obj := range s.doc.Objects {
		if obj.ID == id {
			return i
		}
	}
	return -1
}

// CreateRole appends a role after the current lowest-privilege rung.
func (s *Store) CreateRole(name string) (*Document, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil, fmt.Errorf("role name: %w", ErrInvalidName)
	}
	maxOrder := -1
	for _, r := range s.doc.Roles {
		if r.Order > maxOrder {
			maxOrder = r.Order
		}
	}
	s.doc.Roles = append(s.doc.Roles, Role{
		ID:    uuid.New().String(),
		Name:  normalized,
		Order: maxOrder + 1,
	})
	return s.doc, nil
}

// RenameRole renames an existing role.
func (s *Store) RenameRole(id, name string) (*Document, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil, fmt.Errorf("role name: %w", ErrInvalidName)
	}
	for i := range s.doc.Roles {
		if s.doc.Roles[i].ID == id {
			s.doc.Roles[i].Name = normalized
			return s.doc, nil
		}
	}
	return nil, fmt.Errorf("role %s: %w", id, ErrNotFound)
}

// DeleteRole removes a role and clears the minimum-role reference on any
// endpoint that pointed at it, so no dangling reference survives.
func (s *Store) DeleteRole(id string) (*Document, error) {
	roles := make([]Role, 0, len(s.doc.Roles))
	for _, r := range s.doc.Roles {
		if r.ID != id {
			roles = append(roles, r)
		}
	}
	s.doc.Roles = roles
	for i := range s.doc.Endpoints {
		if s.doc.Endpoints[i].MinRole == id {
			s.doc.Endpoints[i].MinRole = ""
		}
	}
	return s.doc, nil
}

// ReorderRoles rewrites role ranks: ids in orderedIDs take orders 0..n-1 in
// the given sequence; roles omitted from the list keep their previous
// relative order and follow after all listed roles.
func (s *Store) ReorderRoles(orderedIDs []string) (*Document, error) {
	byID := make(map[string]Role, len(s.doc.Roles))
	for _, r := range s.doc.Roles {
		byID[r.ID] = r
	}
	seen := make(map[string]struct{}, len(orderedIDs))
	reordered := make([]Role, 0, len(s.doc.Roles))
	for i, id := range orderedIDs {
		role, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("role %s: %w", id, ErrNotFound)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate role id %s: %w", id, ErrInvalidOperation)
		}
		seen[id] = struct{}{}
		role.Order = i
		reordered = append(reordered, role)
	}

	omitted := make([]Role, 0)
	for _, r := range s.doc.Roles {
		if _, ok := seen[r.ID]; !ok {
			omitted = append(omitted, r)
		}
	}
	sort.SliceStable(omitted, func(i, j int) bool { return omitted[i].Order < omitted[j].Order })
	for i := range omitted {
		omitted[i].Order = len(reordered) + i
	}

	s.doc.Roles = append(reordered, omitted...)
	return s.doc, nil
}

// EndpointSpec carries the creation parameters of an endpoint.
type EndpointSpec struct {
	CollectionID string
	Name         string
	Path         string
	Method       string
	MinRole      string
	QueryParams  []QueryParam
	RequestBody  string
	ResponseBody string
	Description  string
}

// CreateEndpoint adds an endpoint definition. Method defaults to GET and
// path to "/"; fresh ids are assigned to the endpoint and its query
// parameters.
func (s *Store) CreateEndpoint(spec EndpointSpec) (*Document, error) {
	if spec.Method == "" {
		spec.Method = "GET"
	}
	if spec.Path == "" {
		spec.Path = "/"
	}
	ep := EndpointNode{
		ID:           uuid.New().String(),
		Name:         normalizeName(spec.Name),
		CollectionID: spec.CollectionID,
		Path:         spec.Path,
		Method:       spec.Method,
		MinRole:      spec.MinRole,
		QueryParams:  make([]QueryParam, 0, len(spec.QueryParams)),
		RequestBody:  spec.RequestBody,
		ResponseBody: spec.ResponseBody,
		Description:  spec.Description,
	}
	for _, p := range spec.QueryParams {
		ep.QueryParams = append(ep.QueryParams, QueryParam{
			ID:          uuid.New().String(),
			Name:        normalizeName(p.Name),
			Type:        p.Type,
			Required:    p.Required,
			Description: p.Description,
		})
	}
	s.doc.Endpoints = append(s.doc.Endpoints, ep)
	return s.doc, nil
}

// EndpointUpdate is a partial update to an endpoint. Nil fields are left
// unchanged; the endpoint id is immutable.
type EndpointUpdate struct {
	Name         *string       `json:"name,omitempty"`
	CollectionID *string       `json:"collectionId,omitempty"`
	Path         *string       `json:"path,omitempty"`
	Method       *string       `json:"method,omitempty"`
	MinRole      *string       `json:"minRole,omitempty"`
	QueryParams  *[]QueryParam `json:"queryParams,omitempty"`
	RequestBody  *string       `json:"requestBody,omitempty"`
	ResponseBody *string       `json:"responseBody,omitempty"`
	Description  *string       `json:"description,omitempty"`
}

// UpdateEndpoint merges a partial update into an existing endpoint.
func (s *Store) UpdateEndpoint(id string, updates EndpointUpdate) (*Document, error) {
	idx := s.endpointIndex(id)
	if idx < 0 {
		return nil, fmt.Errorf("endpoint %s: %w", id, ErrNotFound)
	}
	ep := &s.doc.Endpoints[idx]
	if updates.Name != nil {
		ep.Name = normalizeName(*updates.Name)
	}
	if updates.CollectionID != nil {
		ep.CollectionID = *updates.CollectionID
	}
	if updates.Path != nil {
		ep.Path = *updates.Path
	}
	if updates.Method != nil {
		ep.Method = *updates.Method
	}
	if updates.MinRole != nil {
		ep.MinRole = *updates.MinRole
	}
	if updates.QueryParams != nil {
		params := make([]QueryParam, 0, len(*updates.QueryParams))
		for _, p := range *updates.QueryParams {
			if p.ID == "" {
				p.ID = uuid.New().String()
			}
			p.Name = normalizeName(p.Name)
			params = append(params, p)
		}
		ep.QueryParams = params
	}
	if updates.RequestBody != nil {
		ep.RequestBody = *updates.RequestBody
	}
	if updates.ResponseBody != nil {
		ep.ResponseBody = *updates.ResponseBody
	}
	if updates.Description != nil {
		ep.Description = *updates.Description
	}
	return s.doc, nil
}

// DeleteEndpoint removes an endpoint. Deleting an absent id succeeds.
func (s *Store) DeleteEndpoint(id string) (*Document, error) {
	endpoints := make([]EndpointNode, 0, len(s.doc.Endpoints))
	for _, ep := range s.doc.Endpoints {
		if ep.ID != id {
			endpoints = append(endpoints, ep)
		}
	}
	s.doc.Endpoints = endpoints
	return s.doc, nil
}

// MoveEndpoint reassigns an endpoint to another collection. An empty
// newCollectionID moves it to the root.
func (s *Store) MoveEndpoint(id, newCollectionID string) (*Document, error) {
	idx := s.endpointIndex(id)
	if idx < 0 {
		return nil, fmt.Errorf("endpoint %s: %w", id, ErrNotFound)
	}
	s.doc.Endpoints[idx].CollectionID = newCollectionID
	return s.doc, nil
}

func (s *Store) endpointIndex(id string) int {
	for i, ep := range s.doc.Endpoints {
		if ep.ID == id {
			return i
		}
	}
	return -1
}

// Replace swaps in a full document, the import operation. The document is
// expected to come from Parse.
func (s *Store) Replace(doc *Document) *Document {
	s.doc = doc
	return s.doc
}

// Parse validates and deserializes an imported document. The payload must
// at minimum carry collections and objects arrays; missing endpoints and
// roles default to empty.
func Parse(raw []byte) (*Document, error) {
	var payload struct {
		Collections *Forest         `json:"collections"`
		Objects     *[]ObjectNode   `json:"objects"`
		Endpoints   *[]EndpointNode `json:"endpoints"`
		Roles       *[]Role         `json:"roles"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if payload.Collections == nil || payload.Objects == nil {
		return nil, fmt.Errorf("missing collections or objects: %w", ErrInvalidDocument)
	}

	doc := NewDocument()
	doc.Collections = payload.Collections
	doc.Objects = *payload.Objects
	if payload.Endpoints != nil {
		doc.Endpoints = *payload.Endpoints
	}
	if payload.Roles != nil {
		doc.Roles = *payload.Roles
	}

	// Null sub-arrays from hand-edited exports become empty slices so the
	// document always rebroadcasts in canonical shape.
	for i := range doc.Objects {
		if doc.Objects[i].Fields == nil {
			doc.Objects[i].Fields = []Field{}
		}
	}
	for i := range doc.Endpoints {
		if doc.Endpoints[i].QueryParams == nil {
			doc.Endpoints[i].QueryParams = []QueryParam{}
		}
	}
	return doc, nil
}
