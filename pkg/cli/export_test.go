package cli

var (
	PrintSyncResults = printSyncResults
	GetIndexConfig   = getIndexConfig
)
