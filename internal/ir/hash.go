package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainLinkSet separates group keys from any other hash the host computes.
const DomainLinkSet = "babel/linkset/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GroupKey returns a stable identifier for an equivalence group. Every
// member stores the same link set, so every member yields the same key;
// hosts that run synchronizations concurrently can lock on it.
func GroupKey(ls LinkSet) string {
	encoded, _ := EncodeLinks(ls)
	return hashWithDomain(DomainLinkSet, []byte(encoded))
}
