package api

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Person is a genealogy record as served by the API.
type Person struct {
	ID                     *int    `json:"id,omitempty"`
	Nome                   string  `json:"nome"`
	Genero                 string  `json:"genero"`
	DataNascimento         *string `json:"data_nascimento,omitempty"`
	LocalNascimento        *string `json:"local_nascimento,omitempty"`
	EstadoNascimento       *string `json:"estado_nascimento,omitempty"`
	DataFalecimento        *string `json:"data_falecimento,omitempty"`
	DataFalecimentoIncerta bool    `json:"data_falecimento_incerta,omitempty"`
	HistoriaPessoal        *string `json:"historia_pessoal,omitempty"`
	Foto                   *string `json:"foto,omitempty"`
	Pai                    *int    `json:"pai,omitempty"`
	Mae                    *int    `json:"mae,omitempty"`
	Conjuge                *int    `json:"conjuge,omitempty"`

	// Read-only, computed by the server
	FotoURL     string    `json:"foto_url,omitempty"`
	Idade       Age       `json:"idade,omitempty"`
	StatusVida  string    `json:"status_vida,omitempty"`
	Owner       *int      `json:"owner,omitempty"`
	OwnerData   *Owner    `json:"owner_data,omitempty"`
	PaiData     *Relative `json:"pai_data,omitempty"`
	MaeData     *Relative `json:"mae_data,omitempty"`
	ConjugeData *Relative `json:"conjuge_data,omitempty"`
	ChildrenIDs []int     `json:"children_ids,omitempty"`

	// Tree endpoint extras
	Relacao           string `json:"relacao,omitempty"`
	IsRootDisplayNode bool   `json:"is_root_display_node,omitempty"`
	IsUserSelected    bool   `json:"is_user_selected,omitempty"`
}

// PersonID returns the id, or 0 for a record not yet created.
func (p *Person) PersonID() int {
	if p == nil || p.ID == nil {
		return 0
	}
	return *p.ID
}

// Relative is the compact display form of a linked person.
type Relative struct {
	ID   int    `json:"id"`
	Nome string `json:"nome"`
}

// Owner identifies the account that created a record.
type Owner struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Age is served either as a number of years or as a label ("Desconhecida").
type Age string

func (a *Age) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Age(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Age(n.String())
	return nil
}

func (a Age) MarshalJSON() ([]byte, error) {
	if _, err := strconv.Atoi(string(a)); err == nil {
		return []byte(a), nil
	}
	return json.Marshal(string(a))
}

// Group types in a tree level.
const (
	GroupCouple  = "couple-group"
	GroupSibling = "sibling-group"
	GroupSolo    = "solo-group"
)

// FamilyUnit is a server-synthesized couple with their children.
type FamilyUnit struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HusbandID   *int   `json:"husband_id,omitempty"`
	WifeID      *int   `json:"wife_id,omitempty"`
	ChildrenIDs []int  `json:"children_ids"`
}

// NodeGroup is one couple, sibling or solo group inside a level.
type NodeGroup struct {
	GroupKey  string   `json:"group_key"`
	GroupType string   `json:"group_type"`
	Nodes     []Person `json:"nodes"`
}

// TreeLevel is one generational row.
type TreeLevel struct {
	Level        int         `json:"level"`
	GroupedNodes []NodeGroup `json:"grouped_nodes"`
}

// Region counts family members per birth region.
type Region struct {
	Regiao string `json:"regiao"`
	Count  int    `json:"count"`
}

// ArvoreResponse is the payload of GET pessoas/{id}/arvore/.
type ArvoreResponse struct {
	RootPerson        *Person      `json:"root_person"`
	Persons           []Person     `json:"persons"`
	Families          []FamilyUnit `json:"families"`
	TreeLevels        []TreeLevel  `json:"tree_levels"`
	RegioesFamiliares []Region     `json:"regioes_familiares"`
}

// Credentials for POST auth/.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration for POST register/.
type Registration struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token    string `json:"token"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// PersonInput is the body of a create or partial update. Nil fields are not
// sent. A pointer to "" (or to 0 for the links) is sent as an empty field,
// which clears the value on the server.
type PersonInput struct {
	Nome                   *string
	Genero                 *string
	DataNascimento         *string
	LocalNascimento        *string
	EstadoNascimento       *string
	DataFalecimento        *string
	DataFalecimentoIncerta *bool
	HistoriaPessoal        *string
	StatusVida             *string
	Pai                    *int
	Mae                    *int
	Conjuge                *int

	// FotoPath is a local file uploaded as the photo. Empty means no upload.
	FotoPath string
}

// String returns a pointer to s, for building PersonInput literals.
func String(s string) *string { return &s }

// Int returns a pointer to n, for building PersonInput literals.
func Int(n int) *int { return &n }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
