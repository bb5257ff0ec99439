package restart

import (
	"strings"
)

// Classifier maps raw failure text to a Strategy. Matching is case sensitive
// substring containment. AddMemorySignatures are checked before
// UndoSignatures and the first match in list order wins.
//
// EngineDownSignature and NoResourceSignature back two independent
// predicates; they play no part in ParseErrorLog.
type Classifier struct {
	AddMemorySignatures []string
	UndoSignatures      []string
	EngineDownSignature string
	NoResourceSignature string
}

// ParseErrorLog classifies msg. Blank text is StrategyNone.
func (c *Classifier) ParseErrorLog(msg string) Strategy {
	if isBlank(msg) {
		return StrategyNone
	}
	if containsAny(msg, c.AddMemorySignatures) {
		return StrategyAddMemory
	}
	if containsAny(msg, c.UndoSignatures) {
		return StrategyUndo
	}
	return StrategyNone
}

// CheckFailureForEngineDown reports whether msg says the engine itself went away.
func (c *Classifier) CheckFailureForEngineDown(msg string) bool {
	return containsSignature(msg, c.EngineDownSignature)
}

// CheckNOResource reports whether msg says the engine had no free resources.
func (c *Classifier) CheckNOResource(msg string) bool {
	return containsSignature(msg, c.NoResourceSignature)
}

func containsAny(msg string, signatures []string) bool {
	for _, sig := range signatures {
		if containsSignature(msg, sig) {
			return true
		}
	}
	return false
}

// An empty signature matches nothing.
func containsSignature(msg, sig string) bool {
	return sig != "" && !isBlank(msg) && strings.Contains(msg, sig)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
