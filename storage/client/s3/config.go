package s3

// Config is a structure to store S3 client configuration.
type Config struct {
	Region    string
	Endpoint  string
	Key       string
	Secret    string
	PathStyle bool
}
