package registry

import (
	"github.com/umbracle/ethgo"
)

// Registry resolves deployed addresses to contract metadata. Lookups for
// unknown, unverified or self-destructed addresses return (nil, nil) rather
// than an error: partial knowledge of the chain is the normal case.
type Registry interface {
	// GetContract returns the metadata for a deployed contract, or nil when
	// the address is not known to the registry
	GetContract(addr ethgo.Address) (*Contract, error)

	// DevRevert returns the project-wide developer revert annotation keyed by
	// program counter, if one was recorded at build time
	DevRevert(pc uint64) (string, bool)
}

// Source languages recognized by the developer revert comment scanner
const (
	LanguageSolidity = "Solidity"
	LanguageVyper    = "Vyper"
)

// CommentMarker returns the single-line comment marker of a source language
func CommentMarker(language string) string {
	if language == LanguageVyper {
		return "#"
	}

	return "//"
}
