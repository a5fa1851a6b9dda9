package model

// MappingEntry is one row of the reference table linking a restaurant name as
// it appears in the order history to its registry identifier.
type MappingEntry struct {
	Name              string `json:"name" yaml:"name"`
	Identifier        string `json:"camis" yaml:"camis"`
	Borough           string `json:"boro,omitempty" yaml:"boro,omitempty"`
	EstablishmentName string `json:"dba,omitempty" yaml:"dba,omitempty"`
}
