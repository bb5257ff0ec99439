// Package flink is the Flink variant of the restart service.
package flink

import (
	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/logcache"
	"github.com/twitter/enginedispatch/restart"
)

const EngineName = "flink"

// NewClassifier returns a classifier over copies of the Flink signature lists.
func NewClassifier() *restart.Classifier {
	return &restart.Classifier{
		AddMemorySignatures: append([]string(nil), AddMemoryRestartSignatures...),
		UndoSignatures:      append([]string(nil), UndoRestartSignatures...),
		EngineDownSignature: EngineDownSignature,
		NoResourceSignature: NoResourceSignature,
	}
}

// NewService returns the Flink restart service. A nil cache gets the default 50 entries, 5 minutes.
func NewService(cache *logcache.Cache, stat stats.StatsReceiver) *restart.LogService {
	return restart.NewLogService(EngineName, NewClassifier(), cache, stat)
}
