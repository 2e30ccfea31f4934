package pgbackend

import (
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend/internal/adapters"
)

// NewClientForAdapters exposes adapter injection to the external test package.
func NewClientForAdapters(dbs map[string]adapters.DBAdapter, names []string, options ...Option) (*Client, error) {
	c, err := newClient(options)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		c.endpoints = append(c.endpoints, endpoint{name: name, db: dbs[name]})
	}
	c.start()

	return c, nil
}

// EndpointDSN exposes endpointDSN to the external test package.
var EndpointDSN = endpointDSN
