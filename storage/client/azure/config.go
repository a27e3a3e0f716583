package azure

// Config is a structure to store Azure Blob Storage client configuration.
type Config struct {
	AccountName      string
	AccountKey       string
	BlobStorageURL   string
	Azurite          bool
	MaxRetryRequests int
}
