package domain

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

var adjectives = []string{
	"amber", "brisk", "cedar", "dusty", "early",
	"faint", "golden", "hazel", "ivory", "jolly",
	"keen", "lively", "mellow", "noble", "opal",
	"pale", "rapid", "silent", "tidy", "umber",
}

var nouns = []string{
	"anvil", "basin", "cliff", "delta", "ember",
	"field", "grove", "heron", "inlet", "knoll",
	"ledge", "marsh", "otter", "plume", "quarry",
	"ridge", "spire", "thorn", "wharf", "zephyr",
}

// NewRunID produces a run identifier of the form
// <agent>-<adjective>-<noun>-<suffix>. The readable pair makes runs easy
// to talk about; the UUID-derived suffix keeps them unique.
func NewRunID(agentName string) string {
	adj := adjectives[rand.Intn(len(adjectives))]
	noun := nouns[rand.Intn(len(nouns))]
	return fmt.Sprintf("%s-%s-%s-%s", agentName, adj, noun, uuid.NewString()[:8])
}
