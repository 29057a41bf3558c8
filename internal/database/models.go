package database

// Digest is a stored, rendered digest for a period.
type Digest struct {
	ID           int64
	PeriodID     string
	TLDR         string
	BodyMarkdown string
	EventCount   int
	ClusterCount int
	GeneratedAt  *string
}

// RunReport holds metadata about a pipeline run.
type RunReport struct {
	ID           int64
	PeriodID     string
	GeneratedAt  *string
	RecordCount  int
	ClusterCount int
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalRecords       int
	PeriodsWithRecords int
	WatchedTickers     int
	ReadEvents         int
	DeliveredKeys      int
	Digests            int
}
