package document

// CollectionNode is the serialized form of one node of the collection tree.
type CollectionNode struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Children []CollectionNode `json:"children"`
}

// Field is a single typed member of an object definition.
type Field struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Object kinds.
const (
	KindInterface = "interface"
	KindType      = "type"
	KindEnum      = "enum"
)

// ObjectNode is a named type definition (interface/type/enum) that lives in
// a collection. An empty CollectionID means root level.
type ObjectNode struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CollectionID string   `json:"collectionId"`
	Kind         string   `json:"kind"`
	Fields       []Field  `json:"fields"`
	EnumValues   []string `json:"enumValues,omitempty"`
}

// QueryParam is one query-string parameter of an endpoint.
type QueryParam struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// EndpointNode is an HTTP endpoint definition.
type EndpointNode struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	CollectionID string       `json:"collectionId"`
	Path         string       `json:"path"`
	Method       string       `json:"method"`
	MinRole      string       `json:"minRole,omitempty"`
	QueryParams  []QueryParam `json:"queryParams"`
	RequestBody  string       `json:"requestBody,omitempty"`
	ResponseBody string       `json:"responseBody,omitempty"`
	Description  string       `json:"description,omitempty"`
}

// Role is one rung of the privilege ladder. Lower order means higher
// privilege.
type Role struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Document is the full collaborative state of one room: the collection
// tree plus every object, endpoint and role.
type Document struct {
	Collections *Forest        `json:"collections"`
	Objects     []ObjectNode   `json:"objects"`
	Endpoints   []EndpointNode `json:"endpoints"`
	Roles       []Role         `json:"roles"`
}

// NewDocument returns an empty document with all containers initialized so
// it serializes as empty arrays rather than nulls.
func NewDocument() *Document {
	return &Document{
		Collections: NewForest(),
		Objects:     []ObjectNode{},
		Endpoints:   []EndpointNode{},
		Roles:       []Role{},
	}
}
