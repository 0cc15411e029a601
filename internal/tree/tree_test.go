package tree

import (
	"testing"

	"arvore/internal/api"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(id int, nome, genero string) api.Person {
	return api.Person{ID: api.Int(id), Nome: nome, Genero: genero}
}

func sampleResponse() *api.ArvoreResponse {
	pai := person(1, "A", "M")
	mae := person(2, "B", "F")
	mae.ChildrenIDs = []int{3}
	child := person(3, "C", "M")
	child.Pai = api.Int(1)
	child.Mae = api.Int(2)
	child.Conjuge = api.Int(99) // not in the response
	pai.Conjuge = api.Int(2)

	return &api.ArvoreResponse{
		RootPerson: &child,
		Persons:    []api.Person{pai, mae, child},
		Families: []api.FamilyUnit{
			{ID: "family_1_2", Type: "family", HusbandID: api.Int(1), WifeID: api.Int(2), ChildrenIDs: []int{3}},
		},
		TreeLevels: []api.TreeLevel{
			{Level: 1, GroupedNodes: []api.NodeGroup{
				{GroupKey: "c-1-2", GroupType: api.GroupCouple, Nodes: []api.Person{pai, mae}},
			}},
			{Level: 0, GroupedNodes: []api.NodeGroup{
				{GroupKey: "s-3", GroupType: api.GroupSolo, Nodes: []api.Person{child}},
			}},
		},
		RegioesFamiliares: []api.Region{{Regiao: "Sudeste", Count: 3}},
	}
}

func TestBuildResolvesParents(t *testing.T) {
	v := Build(sampleResponse())

	require.Len(t, v.Levels, 2)
	node := v.Levels[1].Groups[0].Nodes[0]
	require.NotNil(t, node.PaiData)
	assert.Equal(t, "A", node.PaiData.Nome)
	require.NotNil(t, node.MaeData)
	assert.Equal(t, "B", node.MaeData.Nome)
	assert.Equal(t, "A", node.Father.Nome)
	assert.Same(t, v.Persons[1], node.Father)
	assert.Nil(t, node.Spouse, "unknown spouse id stays unresolved")
	assert.Nil(t, node.ConjugeData)
}

func TestBuildMissingParentLeavesNil(t *testing.T) {
	orphan := person(7, "Órfão", "M")
	orphan.Pai = api.Int(42)
	resp := &api.ArvoreResponse{
		Persons: []api.Person{orphan},
		TreeLevels: []api.TreeLevel{{Level: 0, GroupedNodes: []api.NodeGroup{
			{GroupKey: "s", GroupType: api.GroupSolo, Nodes: []api.Person{orphan}},
		}}},
	}
	v := Build(resp)
	node := v.Levels[0].Groups[0].Nodes[0]
	assert.Nil(t, node.PaiData)
	assert.Nil(t, node.Father)
	assert.Equal(t, []int{}, node.ChildrenIDs)
	assert.Equal(t, []int{}, v.Persons[7].ChildrenIDs)
}

func TestBuildKeepsServerOrder(t *testing.T) {
	v := Build(sampleResponse())
	assert.Equal(t, 1, v.Levels[0].Level)
	assert.Equal(t, 0, v.Levels[1].Level)
	assert.Equal(t, api.GroupCouple, v.Levels[0].Groups[0].Type)
	assert.Equal(t, "A", v.Levels[0].Groups[0].Nodes[0].Nome)
	assert.Equal(t, "B", v.Levels[0].Groups[0].Nodes[1].Nome)
	assert.Equal(t, "C", v.Root.Nome)
	assert.Equal(t, []api.Region{{Regiao: "Sudeste", Count: 3}}, v.Regions)
}

func TestBuildIsIdempotent(t *testing.T) {
	resp := sampleResponse()
	a := Build(resp)
	b := Build(resp)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Build not idempotent (-first +second):\n%s", diff)
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	resp := sampleResponse()
	before := sampleResponse()

	v := Build(resp)
	v.Persons[2].ChildrenIDs[0] = 1000
	v.Levels[0].Groups[0].Nodes[0].Nome = "changed"

	if diff := cmp.Diff(before, resp); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestBuildSharesNoPointersWithInput(t *testing.T) {
	resp := sampleResponse()
	resp.Persons[2].DataNascimento = api.String("1990-01-01")
	resp.TreeLevels[1].GroupedNodes[0].Nodes[0].DataNascimento = api.String("1990-01-01")
	resp.RootPerson.LocalNascimento = api.String("Mariana")
	before := sampleResponse()
	before.Persons[2].DataNascimento = api.String("1990-01-01")
	before.TreeLevels[1].GroupedNodes[0].Nodes[0].DataNascimento = api.String("1990-01-01")
	before.RootPerson.LocalNascimento = api.String("Mariana")

	v := Build(resp)
	*v.Persons[3].Pai = 500
	*v.Persons[3].DataNascimento = "2000-12-31"
	*v.Persons[1].ID = 600
	node := v.Levels[1].Groups[0].Nodes[0]
	*node.Mae = 700
	*node.Conjuge = 800
	*node.DataNascimento = "1800-01-01"
	*v.Root.LocalNascimento = "Ouro Preto"

	if diff := cmp.Diff(before, resp); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestBuildNil(t *testing.T) {
	v := Build(nil)
	assert.Empty(t, v.Levels)
	assert.Empty(t, v.Persons)
	assert.Nil(t, v.Root)
}

func TestSpouse(t *testing.T) {
	v := Build(sampleResponse())
	fam := v.Families["family_1_2"]

	require.NotNil(t, v.Spouse(1, fam))
	assert.Equal(t, "B", v.Spouse(1, fam).Nome)
	assert.Equal(t, "A", v.Spouse(2, fam).Nome)
	assert.Nil(t, v.Spouse(3, fam))

	single := api.FamilyUnit{ID: "family_1", HusbandID: api.Int(1)}
	assert.Nil(t, v.Spouse(1, single))
}

func TestRelationName(t *testing.T) {
	v := Build(sampleResponse())
	assert.Equal(t, "A", v.RelationName(api.Int(1)))
	assert.Equal(t, "Não informado", v.RelationName(api.Int(99)))
	assert.Equal(t, "Não informado", v.RelationName(nil))
	assert.Equal(t, "Não informado", v.RelationName(api.Int(0)))
}

func TestHasChildren(t *testing.T) {
	v := Build(sampleResponse())
	assert.True(t, HasChildren(v.Persons[2]))
	assert.False(t, HasChildren(v.Persons[3]))
	assert.False(t, HasChildren(nil))
}

func TestPersonLookup(t *testing.T) {
	v := Build(sampleResponse())
	p, ok := v.Person(3)
	require.True(t, ok)
	assert.Equal(t, "C", p.Nome)
	_, ok = v.Person(404)
	assert.False(t, ok)
}

func TestFilterByGender(t *testing.T) {
	persons := []api.Person{person(1, "A", "M"), person(2, "B", "F"), person(3, "C", "M")}

	males := FilterByGender(persons, "M")
	require.Len(t, males, 2)
	assert.Equal(t, "A", males[0].Nome)
	assert.Equal(t, "C", males[1].Nome)

	assert.Empty(t, FilterByGender(persons, ""))
	assert.Empty(t, FilterByGender(nil, "F"))
	assert.NotNil(t, FilterByGender(nil, "F"))
}
