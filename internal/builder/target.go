// Package builder is the build orchestration engine: it resolves which
// upstream version to build, composes the toolchain environment,
// acquires and verifies source, drives the right build pipeline, and
// collects the produced binaries.
package builder

import "bitforge/internal/releases"

// Target is one of the two upstream projects bitforge builds. The two
// are independent: no dependency resolution happens between them.
type Target struct {
	Name        string // directory and display name
	RepoURL     string
	ReleasesURL string
}

// Bitcoin is the node daemon target (bitcoind and its tools).
var Bitcoin = Target{
	Name:        "bitcoin",
	RepoURL:     "https://github.com/bitcoin/bitcoin.git",
	ReleasesURL: releases.BitcoinAPI,
}

// Electrs is the protocol-indexing service target.
var Electrs = Target{
	Name:        "electrs",
	RepoURL:     "https://github.com/romanz/electrs.git",
	ReleasesURL: releases.ElectrsAPI,
}
