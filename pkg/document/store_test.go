package document

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func snapshot(t *testing.T, s *Store) string {
	t.Helper()
	data, err := s.Snapshot()
	require.NoError(t, err)
	return string(data)
}

// rootCollection creates a root collection and returns its id.
func rootCollection(t *testing.T, s *Store, name string) string {
	t.Helper()
	doc, err := s.CreateCollection("", name)
	require.NoError(t, err)
	tree := doc.Collections.Tree()
	return tree[len(tree)-1].ID
}

func childCollection(t *testing.T, s *Store, parentID, name string) string {
	t.Helper()
	_, err := s.CreateCollection(parentID, name)
	require.NoError(t, err)
	var id string
	for _, node := range flatten(s.Document().Collections.Tree()) {
		if node.Name == name {
			id = node.ID
		}
	}
	require.NotEmpty(t, id)
	return id
}

func flatten(nodes []CollectionNode) []CollectionNode {
	var out []CollectionNode
	for _, n := range nodes {
		out = append(out, n)
		out = append(out, flatten(n.Children)...)
	}
	return out
}

func TestCreateCollection_NormalizesName(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateCollection("", "  My   API  ")
	require.NoError(t, err)
	require.Equal(t, "My API", doc.Collections.Tree()[0].Name)
}

func TestCreateCollection_EmptyNameFails(t *testing.T) {
	s := NewStore()
	_, err := s.CreateCollection("", "   ")
	require.ErrorIs(t, err, ErrInvalidName)
	require.Equal(t, 0, s.Document().Collections.Len())
}

func TestRenameCollection(t *testing.T) {
	s := NewStore()
	id := rootCollection(t, s, "Users")

	_, err := s.RenameCollection(id, "  Accounts  ")
	require.NoError(t, err)
	name, _ := s.Document().Collections.Name(id)
	require.Equal(t, "Accounts", name)

	_, err = s.RenameCollection(id, "")
	require.ErrorIs(t, err, ErrInvalidName)

	// Renaming an unknown id succeeds without effect.
	_, err = s.RenameCollection("ghost", "whatever")
	require.NoError(t, err)
}

func TestDeleteCollection_CascadesToSubtreeOnly(t *testing.T) {
	s := NewStore()
	users := rootCollection(t, s, "Users")
	admin := childCollection(t, s, users, "Admin")
	other := rootCollection(t, s, "Other")

	_, err := s.CreateObject(admin, "User", KindInterface, nil, nil)
	require.NoError(t, err)
	_, err = s.CreateObject(other, "Kept", KindInterface, nil, nil)
	require.NoError(t, err)
	_, err = s.CreateEndpoint(EndpointSpec{CollectionID: users, Name: "List users"})
	require.NoError(t, err)
	_, err = s.CreateEndpoint(EndpointSpec{CollectionID: other, Name: "Kept endpoint"})
	require.NoError(t, err)

	doc, err := s.DeleteCollection(users)
	require.NoError(t, err)

	require.False(t, doc.Collections.Contains(users))
	require.False(t, doc.Collections.Contains(admin))
	require.True(t, doc.Collections.Contains(other))
	require.Len(t, doc.Objects, 1)
	require.Equal(t, "Kept", doc.Objects[0].Name)
	require.Len(t, doc.Endpoints, 1)
	require.Equal(t, "Kept endpoint", doc.Endpoints[0].Name)
}

func TestDeleteCollection_Scenario(t *testing.T) {
	s := NewStore()
	users := rootCollection(t, s, "Users")
	admin := childCollection(t, s, users, "Admin")
	_, err := s.CreateObject(admin, "User", KindInterface, nil, nil)
	require.NoError(t, err)

	doc, err := s.DeleteCollection(users)
	require.NoError(t, err)
	require.Equal(t, 0, doc.Collections.Len())
	require.Empty(t, doc.Objects)
}

func TestMoveCollection_SelfLeavesDocumentUnchanged(t *testing.T) {
	s := NewStore()
	id := rootCollection(t, s, "Users")
	before := snapshot(t, s)

	_, err := s.MoveCollection(id, id)
	require.ErrorIs(t, err, ErrInvalidOperation)
	require.Equal(t, before, snapshot(t, s))
}

func TestMoveCollection_IntoDescendantLeavesDocumentUnchanged(t *testing.T) {
	s := NewStore()
	users := rootCollection(t, s, "Users")
	admin := childCollection(t, s, users, "Admin")
	before := snapshot(t, s)

	_, err := s.MoveCollection(users, admin)
	require.ErrorIs(t, err, ErrCycleDetected)
	require.Equal(t, before, snapshot(t, s))
}

func TestCreateObject_AssignsIDsAndFiltersEnumValues(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateObject("", " User ", KindInterface,
		[]Field{{Name: " user  name ", Type: "string", Required: true}},
		[]string{"SHOULD_BE_DROPPED"})
	require.NoError(t, err)

	obj := doc.Objects[0]
	require.NotEmpty(t, obj.ID)
	require.Equal(t, "User", obj.Name)
	require.Empty(t, obj.EnumValues)
	require.Len(t, obj.Fields, 1)
	require.NotEmpty(t, obj.Fields[0].ID)
	require.Equal(t, "user name", obj.Fields[0].Name)

	doc, err = s.CreateObject("", "Status", KindEnum, nil, []string{"ACTIVE", "DISABLED"})
	require.NoError(t, err)
	require.Equal(t, []string{"ACTIVE", "DISABLED"}, doc.Objects[1].EnumValues)
}

func TestCreateObject_DefaultsToInterface(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateObject("", "User", "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, KindInterface, doc.Objects[0].Kind)
}

func TestUpdateObject(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateObject("", "User", KindInterface, nil, nil)
	require.NoError(t, err)
	id := doc.Objects[0].ID

	name := "Account"
	kind := KindEnum
	values := []string{"A", "B"}
	doc, err = s.UpdateObject(id, ObjectUpdate{Name: &name, Kind: &kind, EnumValues: &values})
	require.NoError(t, err)
	require.Equal(t, id, doc.Objects[0].ID)
	require.Equal(t, "Account", doc.Objects[0].Name)
	require.Equal(t, KindEnum, doc.Objects[0].Kind)
	require.Equal(t, values, doc.Objects[0].EnumValues)

	_, err = s.UpdateObject("ghost", ObjectUpdate{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMoveObject(t *testing.T) {
	s := NewStore()
	target := rootCollection(t, s, "Target")
	doc, err := s.CreateObject("", "User", KindInterface, nil, nil)
	require.NoError(t, err)
	id := doc.Objects[0].ID

	doc, err = s.MoveObject(id, target)
	require.NoError(t, err)
	require.Equal(t, target, doc.Objects[0].CollectionID)

	// Empty collection id means root.
	doc, err = s.MoveObject(id, "")
	require.NoError(t, err)
	require.Equal(t, "", doc.Objects[0].CollectionID)

	_, err = s.MoveObject("ghost", target)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRole_OrdersFromZero(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateRole("Admin")
	require.NoError(t, err)
	require.Equal(t, 0, doc.Roles[0].Order)

	doc, err = s.CreateRole("Editor")
	require.NoError(t, err)
	require.Equal(t, 1, doc.Roles[1].Order)

	_, err = s.CreateRole("  ")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestReorderRoles(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"Admin", "Editor", "Viewer"} {
		_, err := s.CreateRole(name)
		require.NoError(t, err)
	}
	doc := s.Document()
	ids := []string{doc.Roles[2].ID, doc.Roles[0].ID, doc.Roles[1].ID}

	doc, err := s.ReorderRoles(ids)
	require.NoError(t, err)

	sorted := append([]Role(nil), doc.Roles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	got := make([]string, len(sorted))
	for i, r := range sorted {
		got[i] = r.ID
	}
	require.Equal(t, ids, got)
}

func TestReorderRoles_OmittedRolesFollowIncluded(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"Admin", "Editor", "Viewer"} {
		_, err := s.CreateRole(name)
		require.NoError(t, err)
	}
	doc := s.Document()
	admin, editor, viewer := doc.Roles[0], doc.Roles[1], doc.Roles[2]

	doc, err := s.ReorderRoles([]string{viewer.ID})
	require.NoError(t, err)

	orders := make(map[string]int, 3)
	for _, r := range doc.Roles {
		orders[r.Name] = r.Order
	}
	require.Equal(t, 0, orders[viewer.Name])
	require.Equal(t, 1, orders[admin.Name])
	require.Equal(t, 2, orders[editor.Name])
}

func TestReorderRoles_Failures(t *testing.T) {
	s := NewStore()
	_, err := s.CreateRole("Admin")
	require.NoError(t, err)
	id := s.Document().Roles[0].ID
	before := snapshot(t, s)

	_, err = s.ReorderRoles([]string{"ghost"})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, before, snapshot(t, s))

	_, err = s.ReorderRoles([]string{id, id})
	require.ErrorIs(t, err, ErrInvalidOperation)
	require.Equal(t, before, snapshot(t, s))
}

func TestDeleteRole_ClearsEndpointReferences(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateRole("Admin")
	require.NoError(t, err)
	roleID := doc.Roles[0].ID

	doc, err = s.CreateEndpoint(EndpointSpec{Name: "Delete user", Method: "DELETE", Path: "/users/:id", MinRole: roleID})
	require.NoError(t, err)
	require.Equal(t, roleID, doc.Endpoints[0].MinRole)

	doc, err = s.DeleteRole(roleID)
	require.NoError(t, err)
	require.Empty(t, doc.Roles)
	require.Equal(t, "", doc.Endpoints[0].MinRole)
}

func TestCreateEndpoint_Defaults(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateEndpoint(EndpointSpec{Name: "List users"})
	require.NoError(t, err)

	ep := doc.Endpoints[0]
	require.Equal(t, "GET", ep.Method)
	require.Equal(t, "/", ep.Path)
	require.NotEmpty(t, ep.ID)
	require.Empty(t, ep.QueryParams)
}

func TestCreateEndpoint_AssignsQueryParamIDs(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateEndpoint(EndpointSpec{
		Name:        "Search",
		QueryParams: []QueryParam{{Name: " q ", Type: "string", Required: true}},
	})
	require.NoError(t, err)
	require.Len(t, doc.Endpoints[0].QueryParams, 1)
	require.NotEmpty(t, doc.Endpoints[0].QueryParams[0].ID)
	require.Equal(t, "q", doc.Endpoints[0].QueryParams[0].Name)
}

func TestUpdateEndpoint(t *testing.T) {
	s := NewStore()
	doc, err := s.CreateEndpoint(EndpointSpec{Name: "List users"})
	require.NoError(t, err)
	id := doc.Endpoints[0].ID

	method := "POST"
	path := "/users"
	doc, err = s.UpdateEndpoint(id, EndpointUpdate{Method: &method, Path: &path})
	require.NoError(t, err)
	require.Equal(t, id, doc.Endpoints[0].ID)
	require.Equal(t, "POST", doc.Endpoints[0].Method)
	require.Equal(t, "/users", doc.Endpoints[0].Path)

	_, err = s.UpdateEndpoint("ghost", EndpointUpdate{Method: &method})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParse_Validation(t *testing.T) {
	_, err := Parse([]byte(`{"collections":[]}`))
	require.ErrorIs(t, err, ErrInvalidDocument)

	_, err = Parse([]byte(`{"objects":[]}`))
	require.ErrorIs(t, err, ErrInvalidDocument)

	_, err = Parse([]byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidDocument)

	doc, err := Parse([]byte(`{"collections":[],"objects":[]}`))
	require.NoError(t, err)
	require.NotNil(t, doc.Endpoints)
	require.NotNil(t, doc.Roles)
}

func TestReplace_RoundTrip(t *testing.T) {
	s := NewStore()
	users := rootCollection(t, s, "Users")
	childCollection(t, s, users, "Admin")
	_, err := s.CreateObject(users, "User", KindInterface,
		[]Field{{Name: "id", Type: "string", Required: true}}, nil)
	require.NoError(t, err)
	_, err = s.CreateRole("Admin")
	require.NoError(t, err)
	_, err = s.CreateEndpoint(EndpointSpec{CollectionID: users, Name: "List", Path: "/users"})
	require.NoError(t, err)

	exported := snapshot(t, s)
	doc, err := Parse([]byte(exported))
	require.NoError(t, err)
	s.Replace(doc)

	require.Equal(t, exported, snapshot(t, s))
}
