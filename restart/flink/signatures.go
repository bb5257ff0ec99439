package flink

// Failures that a larger container is expected to fix. Checked before UndoRestartSignatures.
var AddMemoryRestartSignatures = []string{
	"java.lang.OutOfMemoryError",
	"GC overhead limit exceeded",
	"exceeding memory limits",
	"is running beyond physical memory limits",
}

// Transient failures of the run itself; resubmitting unchanged is expected to succeed.
var UndoRestartSignatures = []string{
	"org.apache.flink.runtime.io.network.netty.exception.RemoteTransportException",
	"org.apache.flink.runtime.io.network.partition.PartitionNotFoundException",
	"java.util.concurrent.TimeoutException",
	"akka.pattern.AskTimeoutException",
}

const (
	EngineDownSignature = "Could not connect to the leading JobManager"
	NoResourceSignature = "org.apache.flink.runtime.jobmanager.scheduler.NoResourceAvailableException"
)
