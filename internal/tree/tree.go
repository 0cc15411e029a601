// Package tree turns the server's tree response into the structure the tree
// page renders. Levels, groups and nodes keep the server's order; the builder
// only resolves parent and spouse references against the person index.
package tree

import (
	"arvore/internal/api"
	"arvore/internal/logging"
)

// unknownRelation is shown for a parent or spouse that cannot be resolved.
const unknownRelation = "Não informado"

// Node is a person as displayed in a group, with its relatives resolved.
type Node struct {
	api.Person

	// Father, Mother and Spouse point into View.Persons, nil when the id is
	// unset or not part of the response.
	Father *api.Person
	Mother *api.Person
	Spouse *api.Person
}

// Group is one couple, sibling or solo group of a level.
type Group struct {
	Key   string
	Type  string
	Nodes []Node
}

// Level is one generational row of the tree.
type Level struct {
	Level  int
	Groups []Group
}

// View is the display model of a family tree.
type View struct {
	Root     *api.Person
	Persons  map[int]*api.Person
	Families map[string]api.FamilyUnit
	Levels   []Level
	Regions  []api.Region
}

// Build derives a View from resp. It never mutates resp, and building the
// same response twice yields equal views. A nil response yields an empty view.
func Build(resp *api.ArvoreResponse) *View {
	v := &View{
		Persons:  make(map[int]*api.Person),
		Families: make(map[string]api.FamilyUnit),
	}
	if resp == nil {
		return v
	}

	for i := range resp.Persons {
		p := copyPerson(resp.Persons[i])
		if p.ID == nil {
			continue
		}
		v.Persons[*p.ID] = &p
	}
	for _, f := range resp.Families {
		f.ChildrenIDs = copyInts(f.ChildrenIDs)
		if f.HusbandID != nil {
			f.HusbandID = api.Int(*f.HusbandID)
		}
		if f.WifeID != nil {
			f.WifeID = api.Int(*f.WifeID)
		}
		v.Families[f.ID] = f
	}
	if resp.RootPerson != nil {
		root := copyPerson(*resp.RootPerson)
		v.Root = &root
	}
	if resp.RegioesFamiliares != nil {
		v.Regions = append([]api.Region{}, resp.RegioesFamiliares...)
	}

	v.Levels = make([]Level, 0, len(resp.TreeLevels))
	nodes := 0
	for _, lvl := range resp.TreeLevels {
		out := Level{Level: lvl.Level, Groups: make([]Group, 0, len(lvl.GroupedNodes))}
		for _, g := range lvl.GroupedNodes {
			group := Group{Key: g.GroupKey, Type: g.GroupType, Nodes: make([]Node, 0, len(g.Nodes))}
			for _, n := range g.Nodes {
				group.Nodes = append(group.Nodes, v.resolve(n))
				nodes++
			}
			out.Groups = append(out.Groups, group)
		}
		v.Levels = append(v.Levels, out)
	}

	logging.TreeDebug("built tree view: %d persons, %d families, %d levels, %d nodes",
		len(v.Persons), len(v.Families), len(v.Levels), nodes)
	return v
}

func (v *View) resolve(p api.Person) Node {
	n := Node{Person: copyPerson(p)}
	n.Father = v.lookup(p.Pai)
	n.Mother = v.lookup(p.Mae)
	n.Spouse = v.lookup(p.Conjuge)
	n.PaiData = relative(n.Father)
	n.MaeData = relative(n.Mother)
	n.ConjugeData = relative(n.Spouse)
	return n
}

func (v *View) lookup(id *int) *api.Person {
	if id == nil || *id == 0 {
		return nil
	}
	return v.Persons[*id]
}

func relative(p *api.Person) *api.Relative {
	if p == nil {
		return nil
	}
	return &api.Relative{ID: p.PersonID(), Nome: p.Nome}
}

// Person returns the indexed person with the given id.
func (v *View) Person(id int) (*api.Person, bool) {
	p, ok := v.Persons[id]
	return p, ok
}

// RelationName returns the name of the person with the given id, or
// "Não informado" when the id is unset or unknown.
func (v *View) RelationName(id *int) string {
	if p := v.lookup(id); p != nil {
		return p.Nome
	}
	return unknownRelation
}

// Spouse returns the other partner of family when personID is one of its
// partners and the other one is indexed.
func (v *View) Spouse(personID int, family api.FamilyUnit) *api.Person {
	if family.HusbandID != nil && *family.HusbandID == personID {
		return v.lookup(family.WifeID)
	}
	if family.WifeID != nil && *family.WifeID == personID {
		return v.lookup(family.HusbandID)
	}
	return nil
}

// HasChildren reports whether p has at least one child id.
func HasChildren(p *api.Person) bool {
	return p != nil && len(p.ChildrenIDs) > 0
}

// FilterByGender keeps the persons whose genero equals gender. An empty gender
// yields an empty result.
func FilterByGender(persons []api.Person, gender string) []api.Person {
	out := []api.Person{}
	if gender == "" {
		return out
	}
	for _, p := range persons {
		if p.Genero == gender {
			out = append(out, p)
		}
	}
	return out
}

// copyPerson returns p with no memory shared with the response.
func copyPerson(p api.Person) api.Person {
	p.ID = clone(p.ID)
	p.Pai = clone(p.Pai)
	p.Mae = clone(p.Mae)
	p.Conjuge = clone(p.Conjuge)
	p.Owner = clone(p.Owner)
	p.DataNascimento = clone(p.DataNascimento)
	p.LocalNascimento = clone(p.LocalNascimento)
	p.EstadoNascimento = clone(p.EstadoNascimento)
	p.DataFalecimento = clone(p.DataFalecimento)
	p.HistoriaPessoal = clone(p.HistoriaPessoal)
	p.Foto = clone(p.Foto)
	p.PaiData = clone(p.PaiData)
	p.MaeData = clone(p.MaeData)
	p.ConjugeData = clone(p.ConjugeData)
	p.OwnerData = clone(p.OwnerData)
	p.ChildrenIDs = copyInts(p.ChildrenIDs)
	return p
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// copyInts copies ids, turning a missing list into an empty one.
func copyInts(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}
