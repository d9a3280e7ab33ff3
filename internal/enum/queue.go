package enum

type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

func (t QueueStatus) String() string {
	return string(t)
}

// IsTerminal reports whether no further transition is allowed from this status.
func (t QueueStatus) IsTerminal() bool {
	return t == QueueStatusCompleted || t == QueueStatusFailed
}

type SourceType string

const (
	SourceTypeEmail  SourceType = "email"
	SourceTypeManual SourceType = "manual"
)

func (t SourceType) String() string {
	return string(t)
}
