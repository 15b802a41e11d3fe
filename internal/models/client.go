package models

// Client represents an OAuth client application known to the registry.
type Client struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
