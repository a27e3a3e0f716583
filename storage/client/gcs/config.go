package gcs

// Config is a structure to store Google Cloud Storage client configuration.
type Config struct {
	APIKey          string
	CredentialsFile string
	Endpoint        string
}
